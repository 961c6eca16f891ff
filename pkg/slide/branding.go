package slide

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Branding carries the per-account visual identity applied by every
// backend: colors, handle, and footer text. Values are opaque render
// parameters; the orchestrator never interprets them.
type Branding struct {
	Handle     string `toml:"handle" json:"handle"`
	Primary    string `toml:"primary_color" json:"primary_color"`
	Secondary  string `toml:"secondary_color" json:"secondary_color"`
	Background string `toml:"background_color" json:"background_color"`
	TextColor  string `toml:"text_color" json:"text_color"`
	Footer     string `toml:"footer" json:"footer"`
}

// DefaultBranding is used when no accounts file is configured or the
// account is not listed in it.
var DefaultBranding = Branding{
	Handle:     "@slideforge",
	Primary:    "#4F46E5",
	Secondary:  "#F59E0B",
	Background: "#0F172A",
	TextColor:  "#F8FAFC",
	Footer:     "made with slideforge",
}

// brandingFile is the on-disk shape of the accounts config:
//
//	[accounts.1]
//	handle = "@acme"
//	primary_color = "#112233"
type brandingFile struct {
	Accounts map[string]Branding `toml:"accounts"`
}

// LoadBranding reads the accounts TOML file and returns the branding for
// the given account number, falling back to DefaultBranding for accounts
// not present. A missing file is not an error; a malformed file is.
func LoadBranding(path string, account int) (Branding, error) {
	if path == "" {
		return DefaultBranding, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultBranding, nil
	}

	var file brandingFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Branding{}, fmt.Errorf("parse accounts config %s: %w", path, err)
	}

	b, ok := file.Accounts[fmt.Sprintf("%d", account)]
	if !ok {
		return DefaultBranding, nil
	}
	b.applyDefaults()
	return b, nil
}

// applyDefaults fills empty fields from DefaultBranding so partial account
// entries stay renderable.
func (b *Branding) applyDefaults() {
	if b.Handle == "" {
		b.Handle = DefaultBranding.Handle
	}
	if b.Primary == "" {
		b.Primary = DefaultBranding.Primary
	}
	if b.Secondary == "" {
		b.Secondary = DefaultBranding.Secondary
	}
	if b.Background == "" {
		b.Background = DefaultBranding.Background
	}
	if b.TextColor == "" {
		b.TextColor = DefaultBranding.TextColor
	}
	if b.Footer == "" {
		b.Footer = DefaultBranding.Footer
	}
}
