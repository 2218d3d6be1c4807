package importer

import "fmt"

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names, lowercased.
const (
	op1ColTitle    = "title"
	op1ColWebsite  = "website"
	op1ColUsername = "username"
	op1ColPassword = "password"
	op1ColOTPAuth  = "otpauth"
	op1ColTags     = "tags"
	op1ColNotes    = "notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	result := &Result{}
	names := newNamer()

	warnings, err := readCSV(data, op1ColTitle, nil, func(row csvRow) {
		title := row.get(op1ColTitle)
		website := row.get(op1ColWebsite)
		username := row.get(op1ColUsername)
		password := row.raw(op1ColPassword)
		notes := row.get(op1ColNotes)

		if username == "" && password == "" && notes == "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: title, Reason: "no useful data"})
			return
		}
		if row.get(op1ColOTPAuth) != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: TOTP seed not imported", row.num))
		}

		cred := importedCredential(names.name(title, website), username, password, website, notes)
		if tags := row.get(op1ColTags); tags != "" {
			cred.Description = describe(cred.Description, "tags: "+tags)
		}
		result.Credentials = append(result.Credentials, cred)
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}
