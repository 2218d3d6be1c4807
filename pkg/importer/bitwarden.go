package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BitwardenParser parses Bitwarden unencrypted JSON export files.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

// bitwardenExport represents the top-level Bitwarden export structure.
type bitwardenExport struct {
	Encrypted bool              `json:"encrypted"`
	Items     []bitwardenItem   `json:"items"`
	Folders   []bitwardenFolder `json:"folders"`
}

// bitwardenFolder represents a Bitwarden folder.
type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// bitwardenItem represents a Bitwarden vault item.
type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	FolderID *string                `json:"folderId"`
	Login    *bitwardenLogin        `json:"login"`
	Card     *bitwardenCard         `json:"card"`
	Fields   []bitwardenCustomField `json:"fields"`
}

// bitwardenLogin represents Bitwarden login data.
type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

// bitwardenURI represents a Bitwarden URI entry.
type bitwardenURI struct {
	URI string `json:"uri"`
}

// bitwardenCard represents Bitwarden card data.
type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

// bitwardenCustomField represents a Bitwarden custom field.
type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data. Logins, secure notes and cards are
// imported; identities are skipped.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("encrypted Bitwarden exports are not supported, export as unencrypted JSON")
	}

	folders := make(map[string]string, len(export.Folders))
	for _, f := range export.Folders {
		folders[f.ID] = f.Name
	}

	result := &Result{}
	names := newNamer()

	for i := range export.Items {
		item := &export.Items[i]

		var username, secret, link, extra string
		switch item.Type {
		case bitwardenTypeLogin:
			if item.Login != nil {
				username, secret = item.Login.Username, item.Login.Password
				if len(item.Login.URIs) > 0 {
					link = item.Login.URIs[0].URI
				}
				if item.Login.TOTP != "" {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("item %d (%s): TOTP seed not imported", i+1, item.Name))
				}
			}
		case bitwardenTypeSecureNote:
			// the note is the protected value
			secret, item.Notes = item.Notes, ""
		case bitwardenTypeCard:
			if item.Card != nil {
				username, secret, extra = cardFields(item.Card)
			}
		case bitwardenTypeIdentity:
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "identity items are not supported"})
			continue
		default:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("item %d (%s): unsupported item type: %d", i+1, item.Name, item.Type))
			continue
		}

		custom, hidden := customFields(item.Fields)
		if hidden > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("item %d (%s): %d hidden custom fields not imported", i+1, item.Name, hidden))
		}

		if username == "" && secret == "" && item.Notes == "" && custom == "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: "no useful data"})
			continue
		}

		cred := importedCredential(names.name(item.Name, link), username, secret, link, item.Notes)
		var folder string
		if item.FolderID != nil && folders[*item.FolderID] != "" {
			folder = "folder: " + folders[*item.FolderID]
		}
		cred.Description = describe(cred.Description, extra, custom, folder)
		result.Credentials = append(result.Credentials, cred)
	}

	return result, nil
}

// cardFields maps a card to username (cardholder), secret (number and
// security code) and a non-secret description line.
func cardFields(card *bitwardenCard) (username, secret, extra string) {
	secret = card.Number
	if card.Code != "" {
		secret = strings.TrimSpace(secret + " cvv " + card.Code)
	}
	var desc []string
	if card.Brand != "" {
		desc = append(desc, card.Brand)
	}
	if card.ExpMonth != "" || card.ExpYear != "" {
		desc = append(desc, fmt.Sprintf("expires %s/%s", card.ExpMonth, card.ExpYear))
	}
	return card.CardholderName, secret, strings.Join(desc, ", ")
}

// customFields renders visible custom fields as "name: value" lines and
// counts the hidden ones, which would otherwise land in plain description text.
func customFields(fields []bitwardenCustomField) (string, int) {
	var lines []string
	hidden := 0
	for _, cf := range fields {
		switch cf.Type {
		case bitwardenFieldHidden:
			hidden++
		case bitwardenFieldText, bitwardenFieldBoolean:
			if cf.Name != "" || cf.Value != "" {
				lines = append(lines, cf.Name+": "+cf.Value)
			}
		}
	}
	return strings.Join(lines, "\n"), hidden
}
