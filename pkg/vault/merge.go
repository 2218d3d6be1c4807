package vault

// MergeReport describes what Merge did with each credential of the other vault.
type MergeReport struct {
	Added     []string // Names missing from this vault, copied over
	Updated   []string // Names where the other vault held a newer record
	Skipped   []string // Names where this vault's record is as new or newer
	Identical []string // Names with equal records in both vaults
}

// Changed reports whether the merge modified the vault.
func (r MergeReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0
}

// Merge folds the credentials of other into v. For a name present in both,
// the record with the later LastUpdated wins; ties keep v's record.
// Records are copied with their original timestamps.
func (v *Vault) Merge(other *Vault) MergeReport {
	var report MergeReport
	for _, theirs := range other.Credentials() {
		mine, ok := v.records[theirs.Name]
		switch {
		case !ok:
			v.records[theirs.Name] = theirs
			report.Added = append(report.Added, theirs.Name)
		case sameCredential(mine, theirs):
			report.Identical = append(report.Identical, theirs.Name)
		case theirs.LastUpdated.After(mine.LastUpdated):
			v.records[theirs.Name] = theirs
			report.Updated = append(report.Updated, theirs.Name)
		default:
			report.Skipped = append(report.Skipped, theirs.Name)
		}
	}
	return report
}

func sameCredential(a, b Credential) bool {
	return a.Name == b.Name &&
		a.Username == b.Username &&
		a.Secret == b.Secret &&
		a.Description == b.Description &&
		a.Created.Equal(b.Created) &&
		a.LastUpdated.Equal(b.LastUpdated)
}
