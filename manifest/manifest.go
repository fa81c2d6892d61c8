package manifest

/*
*

	{
		"name":"My Mini App",
		"description":"what it does",
		"icon":"https://example.com/icon.png",
		"category":"games",
		"ogImage":"https://example.com/og.png",
		"owner":"0x..."            (string or array)
		"owners":["0x...","0x..."] (string or array)
		"screenshots":["https://example.com/1.png"],
		"miniapp":{"iconUrl":"...","primaryCategory":"...","screenshotUrls":[...],"ogImageUrl":"..."}
	}

*
*/

// Manifest the fields of a farcaster.json document the engine consumes
type Manifest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Category    string   `json:"category"`
	OgImage     string   `json:"ogImage"`
	Owner       []string `json:"owner,omitempty"`
	Owners      []string `json:"owners,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`

	// OwnerDeclared is true when either owner or owners is present, even if empty
	OwnerDeclared bool `json:"-"`

	// Raw is the fetched document, kept as the app's manifest snapshot
	Raw string `json:"-"`
}

// Snapshot returns the serialized document to persist with the app.
func (m *Manifest) Snapshot() string {
	if m == nil {
		return ""
	}
	return m.Raw
}
