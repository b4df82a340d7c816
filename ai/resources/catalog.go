// Package resources holds the read-only catalog of support resources.
package resources

import "strings"

// Category groups resources by the kind of help they offer.
type Category string

const (
	CategoryCrisis       Category = "crisis"
	CategoryTherapy      Category = "therapy"
	CategorySupportGroup Category = "support_group"
	CategorySelfHelp     Category = "self_help"
	CategoryEmergency    Category = "emergency"
)

// Resource is a hotline, service or app offered to users.
type Resource struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	URL           string   `json:"url,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Available24x7 bool     `json:"available24_7"`
}

// Catalog is the lookup surface used by the response strategies.
type Catalog interface {
	All() []Resource
	ByCategory(category Category) []Resource
	// Search matches title, description or category, case-insensitively.
	Search(query string) []Resource
	// Emergency lists crisis and emergency resources.
	Emergency() []Resource
}

// StaticCatalog is an in-process Catalog. It is safe for concurrent use.
type StaticCatalog struct {
	resources []Resource
}

func NewStaticCatalog(resources []Resource) *StaticCatalog {
	return &StaticCatalog{resources: append([]Resource(nil), resources...)}
}

// Default returns the built-in catalog.
func Default() *StaticCatalog {
	return NewStaticCatalog(defaultResources)
}

func (c *StaticCatalog) All() []Resource {
	return append([]Resource(nil), c.resources...)
}

func (c *StaticCatalog) ByCategory(category Category) []Resource {
	return c.filter(func(r Resource) bool { return r.Category == category })
}

func (c *StaticCatalog) Search(query string) []Resource {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Resource{}
	}
	return c.filter(func(r Resource) bool {
		return strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Description), q) ||
			strings.Contains(string(r.Category), q)
	})
}

func (c *StaticCatalog) Emergency() []Resource {
	return c.filter(func(r Resource) bool {
		return r.Category == CategoryCrisis || r.Category == CategoryEmergency
	})
}

func (c *StaticCatalog) filter(keep func(Resource) bool) []Resource {
	out := make([]Resource, 0)
	for _, r := range c.resources {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

var defaultResources = []Resource{
	{
		ID:            "suicide-prevention-lifeline",
		Title:         "National Suicide Prevention Lifeline",
		Description:   "24/7 free and confidential support for people in distress, prevention and crisis resources.",
		Category:      CategoryCrisis,
		Phone:         "988",
		Available24x7: true,
	},
	{
		ID:            "crisis-text-line",
		Title:         "Crisis Text Line",
		Description:   "Free 24/7 support for those in crisis. Text HOME to 741741.",
		Category:      CategoryCrisis,
		Phone:         "741741",
		Available24x7: true,
	},
	{
		ID:            "samhsa-helpline",
		Title:         "SAMHSA National Helpline",
		Description:   "Treatment referral and information service for mental health and substance use disorders.",
		Category:      CategoryCrisis,
		Phone:         "1-800-662-4357",
		Available24x7: true,
	},
	{
		ID:          "nami-helpline",
		Title:       "NAMI HelpLine",
		Description: "Information, resource referrals and support for mental health questions.",
		Category:    CategorySupportGroup,
		Phone:       "1-800-950-6264",
	},
	{
		ID:          "betterhelp",
		Title:       "BetterHelp",
		Description: "Online therapy platform connecting you with licensed therapists.",
		Category:    CategoryTherapy,
		URL:         "https://www.betterhelp.com",
	},
	{
		ID:          "talkspace",
		Title:       "Talkspace",
		Description: "Online therapy with licensed therapists via text, audio, and video.",
		Category:    CategoryTherapy,
		URL:         "https://www.talkspace.com",
	},
	{
		ID:            "headspace",
		Title:         "Headspace",
		Description:   "Meditation and mindfulness app for mental wellness.",
		Category:      CategorySelfHelp,
		URL:           "https://www.headspace.com",
		Available24x7: true,
	},
	{
		ID:            "calm",
		Title:         "Calm",
		Description:   "App for meditation, sleep, and relaxation.",
		Category:      CategorySelfHelp,
		URL:           "https://www.calm.com",
		Available24x7: true,
	},
	{
		ID:            "emergency-911",
		Title:         "Emergency Services",
		Description:   "For immediate life-threatening emergencies.",
		Category:      CategoryEmergency,
		Phone:         "911",
		Available24x7: true,
	},
}
