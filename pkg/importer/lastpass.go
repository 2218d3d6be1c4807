package importer

import "fmt"

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names.
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
)

// lastPassSecureNoteURL is the placeholder URL LastPass uses for secure notes.
const lastPassSecureNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data. LastPass HTML-encodes special characters,
// so every value is unescaped.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	result := &Result{}
	names := newNamer()

	warnings, err := readCSV(data, lpColName, DecodeHTMLEntities, func(row csvRow) {
		title := row.get(lpColName)
		link := row.get(lpColURL)
		username := row.get(lpColUsername)
		password := row.raw(lpColPassword)
		extra := row.get(lpColExtra)
		if link == lastPassSecureNoteURL {
			// the note is the protected value
			link = ""
			if password == "" {
				password, extra = row.raw(lpColExtra), ""
			}
		}

		if username == "" && password == "" && extra == "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: title, Reason: "no useful data"})
			return
		}
		if row.get(lpColTOTP) != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: TOTP seed not imported", row.num))
		}

		cred := importedCredential(names.name(title, link), username, password, link, extra)
		if group := row.get(lpColGrouping); group != "" {
			cred.Description = describe(cred.Description, "group: "+group)
		}
		result.Credentials = append(result.Credentials, cred)
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}
