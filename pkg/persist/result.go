package persist

// Result is the discriminant spec.md §7 defines: every core operation
// reports one of these four outcomes, in addition to (and consistent
// with) any Go error returned alongside it.
type Result int

const (
	// ResultSuccess means the operation completed: Init scanned, Load
	// copied out a payload, Save persisted one.
	ResultSuccess Result = iota
	// ResultSuccessLegacy means LoadLegacy succeeded via the older-version
	// fallback path rather than the current version.
	ResultSuccessLegacy
	// ResultNoData means no block matching the current version, with a
	// valid checksum, could be found.
	ResultNoData
	// ResultFail means a backend call failed, or the geometry precludes
	// operation; the accompanying error is non-nil.
	ResultFail
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultSuccessLegacy:
		return "SuccessLegacy"
	case ResultNoData:
		return "NoData"
	case ResultFail:
		return "Fail"
	default:
		return "Unknown"
	}
}
