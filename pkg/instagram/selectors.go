package instagram

// Selectors are the CSS selectors the scraper relies on. They describe the
// site's rendered DOM and break whenever Instagram ships a new layout, so
// every one of them can be overridden from configuration.
type Selectors struct {
	// Identity only renders for a logged-in session; its href is the owner's profile
	Identity string `yaml:"identity" json:"identity"`

	FeedContainer string `yaml:"feed_container" json:"feed_container"`
	PostLink      string `yaml:"post_link" json:"post_link"`

	Dialog       string `yaml:"dialog" json:"dialog"`
	DialogAuthor string `yaml:"dialog_author" json:"dialog_author"`
	DialogClose  string `yaml:"dialog_close" json:"dialog_close"`
	// CanonicalURL is read when the dialog author link is missing
	CanonicalURL string `yaml:"canonical_url" json:"canonical_url"`

	ProfileHeader    string `yaml:"profile_header" json:"profile_header"`
	FullName         string `yaml:"full_name" json:"full_name"`
	Biography        string `yaml:"biography" json:"biography"`
	Address          string `yaml:"address" json:"address"`
	BusinessCategory string `yaml:"business_category" json:"business_category"`
	ExternalURL      string `yaml:"external_url" json:"external_url"`
}

// DefaultSelectors returns selectors matching the current web layout
func DefaultSelectors() Selectors {
	return Selectors{
		Identity: `a[href^="/"][role="link"]:has(img[alt$="profile picture"])`,

		FeedContainer: `main`,
		PostLink:      `main a[href*="/p/"], main a[href*="/reel/"], main a[href*="/tv/"]`,

		Dialog:       `div[role="dialog"]`,
		DialogAuthor: `div[role="dialog"] header a[href^="/"]`,
		DialogClose:  `svg[aria-label="Close"]`,
		CanonicalURL: `meta[property="og:url"]`,

		ProfileHeader:    `header section`,
		FullName:         `header section div > span[dir="auto"]`,
		Biography:        `header section span > div > span, header section h1 + span`,
		Address:          `header section h1`,
		BusinessCategory: `header section div[dir="auto"]`,
		ExternalURL:      `header section a[href*="l.instagram.com"], header section a[rel~="nofollow"]`,
	}
}

// WithDefaults fills empty selectors from DefaultSelectors
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Identity, d.Identity)
	fill(&s.FeedContainer, d.FeedContainer)
	fill(&s.PostLink, d.PostLink)
	fill(&s.Dialog, d.Dialog)
	fill(&s.DialogAuthor, d.DialogAuthor)
	fill(&s.DialogClose, d.DialogClose)
	fill(&s.CanonicalURL, d.CanonicalURL)
	fill(&s.ProfileHeader, d.ProfileHeader)
	fill(&s.FullName, d.FullName)
	fill(&s.Biography, d.Biography)
	fill(&s.Address, d.Address)
	fill(&s.BusinessCategory, d.BusinessCategory)
	fill(&s.ExternalURL, d.ExternalURL)
	return s
}
