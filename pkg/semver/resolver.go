package semver

import (
	"fmt"
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// Version statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// VersionRecord is one registered version of an operation.
type VersionRecord struct {
	Key           string
	Major         int
	Minor         int
	Patch         int
	Prerelease    string
	Status        string // "active", "deprecated"
	VersionString string
}

// NewVersionRecord parses an exact version string into a VersionRecord.
func NewVersionRecord(key, version, status string) (VersionRecord, error) {
	sv, err := masterminds.StrictNewVersion(version)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	if status == "" {
		status = StatusActive
	}
	return VersionRecord{
		Key:           key,
		Major:         int(sv.Major()),
		Minor:         int(sv.Minor()),
		Patch:         int(sv.Patch()),
		Prerelease:    sv.Prerelease(),
		Status:        status,
		VersionString: sv.String(),
	}, nil
}

// ResolveVersionParams holds parameters for ResolveVersion.
type ResolveVersionParams struct {
	Versions          []VersionRecord
	Range             string // SemVer range, major-only, exact, or empty
	IncludeDeprecated bool
}

// ResolveVersion finds the best matching version for a given range.
// An empty range selects the latest version of the highest major.
func ResolveVersion(params ResolveVersionParams) *VersionRecord {
	if len(params.Versions) == 0 {
		return nil
	}

	if params.Range == "" {
		return findLatestInMajor(params.Versions, findHighestMajor(params.Versions), params.IncludeDeprecated)
	}

	if IsMajorOnly(params.Range) {
		return findLatestInMajor(params.Versions, ExtractMajorFromRange(params.Range), params.IncludeDeprecated)
	}

	if IsExactVersion(params.Range) {
		return findExactVersion(params.Versions, params.Range)
	}

	constraint, err := masterminds.NewConstraint(params.Range)
	if err != nil {
		return nil
	}

	var matching []VersionRecord
	for _, v := range params.Versions {
		sv, err := masterminds.NewVersion(v.VersionString)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	sortVersionsDesc(matching)

	// Prefer active over deprecated
	if !params.IncludeDeprecated {
		for i := range matching {
			if matching[i].Status == StatusActive {
				return &matching[i]
			}
		}
	}
	return &matching[0]
}

// --- internal helpers ---

func findHighestMajor(versions []VersionRecord) int {
	highest := -1
	for _, v := range versions {
		if v.Major > highest {
			highest = v.Major
		}
	}
	return highest
}

func findLatestInMajor(versions []VersionRecord, major int, includeDeprecated bool) *VersionRecord {
	var inMajor []VersionRecord
	for _, v := range versions {
		if v.Major == major {
			inMajor = append(inMajor, v)
		}
	}
	if len(inMajor) == 0 {
		return nil
	}

	// Prefer stable (non-prerelease) versions
	var stable []VersionRecord
	for _, v := range inMajor {
		if v.Prerelease == "" {
			stable = append(stable, v)
		}
	}
	candidates := inMajor
	if len(stable) > 0 {
		candidates = stable
	}

	sortVersionsDesc(candidates)

	if !includeDeprecated {
		for i := range candidates {
			if candidates[i].Status == StatusActive {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}

func findExactVersion(versions []VersionRecord, versionStr string) *VersionRecord {
	for i := range versions {
		if versions[i].VersionString == versionStr {
			return &versions[i]
		}
	}
	return nil
}

func sortVersionsDesc(versions []VersionRecord) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, err1 := masterminds.NewVersion(versions[i].VersionString)
		vj, err2 := masterminds.NewVersion(versions[j].VersionString)
		if err1 != nil || err2 != nil {
			return false
		}
		return vi.GreaterThan(vj)
	})
}
