package store

import "careroute/pkg/models"

// SeedHelplines is the reference helpline directory loaded into fresh stores.
var SeedHelplines = []models.Helpline{
	{Issue: "Suicidal Thoughts", Number: "+91-9152987821", Region: "India", Description: "24/7 suicide prevention helpline"},
	{Issue: "Mental Health Crisis", Number: "1075", Region: "India", Description: "Kiran Mental Health Helpline"},
	{Issue: "Depression Support", Number: "+91-80-25497777", Region: "India", Description: "Sneha India Foundation"},
	{Issue: "Student Mental Health", Number: "+91-9820466726", Region: "India", Description: "iCall Psychosocial Helpline"},
	{Issue: "Suicide Prevention", Number: "988", Region: "USA", Description: "National Suicide Prevention Lifeline"},
	{Issue: "Crisis Text Line", Number: "741741", Region: "USA", Description: "Text HOME to 741741"},
}

var SeedExperts = []models.Expert{
	{
		ExpertID: "E001", Name: "Dr. Sarah Johnson", Type: "student_counselor",
		Specializations: []string{"general", "escalation", "crisis", "academic_stress"},
		Languages:       []string{"English", "Hindi"}, Available: true,
	},
	{
		ExpertID: "E002", Name: "Dr. Michael Chen", Type: "psychologist",
		Specializations: []string{"cbt", "anxiety", "depression"},
		Languages:       []string{"English"}, Available: true,
	},
	{
		ExpertID: "E003", Name: "Dr. Priya Sharma", Type: "mindfulness_coach",
		Specializations: []string{"mindfulness", "stress", "sleep", "lifestyle"},
		Languages:       []string{"English", "Hindi", "Tamil"}, Available: true,
	},
	{
		ExpertID: "E004", Name: "Dr. Robert Williams", Type: "psychiatrist",
		Specializations: []string{"severe_depression", "bipolar", "medication", "crisis"},
		Languages:       []string{"English"}, Available: true,
	},
	{
		ExpertID: "E005", Name: "Dr. Lisa Martinez", Type: "relationship_counselor",
		Specializations: []string{"relationships", "family", "workplace", "communication"},
		Languages:       []string{"English", "Spanish"}, Available: true,
	},
}
