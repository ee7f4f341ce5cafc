package ledger

import "slices"

// milestoneURIs maps each verified-project count that earns a badge to the
// metadata location of that badge. The set is closed: counts of 4, 6, 8, 9
// or anything above 10 earn nothing.
var milestoneURIs = map[uint64]string{
	3:  "ipfs://gigledger-badges/rising-talent.json",
	5:  "ipfs://gigledger-badges/proven-freelancer.json",
	7:  "ipfs://gigledger-badges/trusted-professional.json",
	10: "ipfs://gigledger-badges/top-rated-expert.json",
}

// Milestones returns the milestone counts in ascending order.
func Milestones() []uint64 {
	out := make([]uint64, 0, len(milestoneURIs))
	for m := range milestoneURIs {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// MilestoneURI returns the badge metadata URI for a milestone count, or ""
// when count is not a milestone.
func MilestoneURI(count uint64) string {
	return milestoneURIs[count]
}

// isMilestone matches by equality. Counts only ever grow by one, so no
// milestone can be skipped and ">=" would award exactly the same badges.
func isMilestone(count uint64) bool {
	_, ok := milestoneURIs[count]
	return ok
}
