package memstore

import "github.com/samibismar/calmclinic.health-sub001/internal/models"

// DemoTenantID is the tenant created by Seed.
const DemoTenantID = 1

// Seed loads a demo eye-care clinic with a provider and a few indexed pages.
func Seed(s *Store, apiKey string) {
	s.AddTenant(models.Tenant{
		ID:               DemoTenantID,
		Name:             "Clearview Eye Associates",
		Specialty:        "Ophthalmology",
		APIKey:           apiKey,
		RateLimitPerHour: 1000,
		Tone:             "warm",
		Languages:        []string{"English", "Spanish"},
		Phone:            "(817) 555-0142",
		RAG: &models.RAGSettings{
			ConfidenceThreshold: 0.6,
			MaxWebPages:         3,
			CacheTTLHours:       24,
		},
	})
	s.AddProvider(models.Provider{
		ID:          1,
		TenantID:    DemoTenantID,
		Name:        "Maria Alvarez",
		Title:       "MD",
		Gender:      "female",
		Specialties: []string{"cataract surgery", "glaucoma"},
		Experience:  "15 years",
	})

	pages := []Document{
		{
			URL:     "https://clearview.example/hours",
			Title:   "Office Hours",
			Summary: "Clearview is open Monday through Friday from 8am to 5pm and Saturday from 9am to noon.",
		},
		{
			URL:     "https://clearview.example/insurance",
			Title:   "Insurance",
			Summary: "Clearview accepts most major insurance plans including VSP, EyeMed, Aetna and Medicare.",
		},
		{
			URL:     "https://clearview.example/services",
			Title:   "Services",
			Summary: "Clearview offers comprehensive eye exams, cataract surgery, glaucoma treatment and contact lens fittings.",
		},
		{
			URL:     "https://clearview.example/contact",
			Title:   "Contact Us",
			Summary: "Call (817) 555-0142 or visit 400 Main Street, Fort Worth.",
		},
	}
	for _, p := range pages {
		p.Embedding = hashEmbedding(p.Title + " " + p.Summary)
		s.AddDocument(DemoTenantID, p)
	}
}
