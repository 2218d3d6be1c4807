package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nieksand/pman/pkg/vault"
)

const bitwardenExportJSON = `{
  "encrypted": false,
  "folders": [{"id": "f1", "name": "Work"}],
  "items": [
    {
      "type": 1,
      "name": "GitHub",
      "notes": "2fa on phone",
      "folderId": "f1",
      "login": {
        "uris": [{"uri": "https://github.com"}, {"uri": "https://gist.github.com"}],
        "username": "niek",
        "password": "s3cr3t",
        "totp": "JBSWY3DPEHPK3PXP"
      },
      "fields": [
        {"name": "recovery", "value": "abc-def", "type": 1},
        {"name": "team", "value": "infra", "type": 0}
      ]
    },
    {"type": 2, "name": "Wifi", "notes": "correct horse", "folderId": null},
    {
      "type": 3,
      "name": "Visa",
      "card": {"cardholderName": "N Sanders", "number": "4111111111111111", "expMonth": "04", "expYear": "2030", "code": "123", "brand": "Visa"}
    },
    {"type": 4, "name": "Me", "identity": {"firstName": "Niek"}},
    {"type": 1, "name": "Empty", "login": {}},
    {"type": 9, "name": "Future"}
  ]
}`

func TestBitwardenParser_Parse(t *testing.T) {
	result, err := (&BitwardenParser{}).Parse([]byte(bitwardenExportJSON))
	require.NoError(t, err)

	require.Len(t, result.Credentials, 3)
	assert.Equal(t, vault.Credential{
		Name:        "GitHub",
		Username:    "niek",
		Secret:      "s3cr3t",
		Description: "https://github.com\n2fa on phone\nteam: infra\nfolder: Work",
	}, result.Credentials[0])
	assert.Equal(t, vault.Credential{Name: "Wifi", Secret: "correct horse"}, result.Credentials[1])
	assert.Equal(t, vault.Credential{
		Name:        "Visa",
		Username:    "N Sanders",
		Secret:      "4111111111111111 cvv 123",
		Description: "Visa, expires 04/2030",
	}, result.Credentials[2])

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "Me", result.Skipped[0].OriginalName)
	assert.Equal(t, "identity items are not supported", result.Skipped[0].Reason)
	assert.Equal(t, "Empty", result.Skipped[1].OriginalName)

	assert.Equal(t, []string{
		"item 1 (GitHub): TOTP seed not imported",
		"item 1 (GitHub): 1 hidden custom fields not imported",
		"item 6 (Future): unsupported item type: 9",
	}, result.Warnings)
}

func TestBitwardenParser_Errors(t *testing.T) {
	_, err := (&BitwardenParser{}).Parse([]byte("not json"))
	assert.ErrorContains(t, err, "failed to parse Bitwarden JSON")

	_, err = (&BitwardenParser{}).Parse([]byte(`{"encrypted": true, "items": []}`))
	assert.ErrorContains(t, err, "encrypted Bitwarden exports")
}
