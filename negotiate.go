package conneg

import (
	"cmp"
	"slices"
)

// Match is the outcome of a successful negotiation.
type Match struct {
	// The selected media type from the available list.
	MediaType MediaType

	// The quality the client assigned to the selection.
	Quality float64

	// The client preference the selection matched.
	Pattern Preference
}

// Negotiate selects the best of the available media types, listed in the order the
// server prefers them, for the requested preferences (typically from ParseAccept).
//
// An available type is a candidate for every preference whose range Accepts it, unless
// that preference has a quality of 0. Candidates are ranked by descending quality,
// then by descending specificity of the matched preference (text/html beats text/*),
// then by the position of the available type, and finally by the preference's Index.
// If nothing is acceptable Negotiate returns false; callers usually respond with
// 406 Not Acceptable (see ErrNotAcceptable).
func Negotiate(available []MediaType, requested []Preference) (Match, bool) {
	type candidate struct {
		offer int
		pref  int
	}

	var candidates []candidate
	for i, offer := range available {
		for j, pref := range requested {
			if pref.Quality <= 0 {
				continue
			}
			if pref.MediaType.Accepts(offer) {
				candidates = append(candidates, candidate{offer: i, pref: j})
			}
		}
	}

	if len(candidates) == 0 {
		return Match{}, false
	}

	best := slices.MinFunc(candidates, func(a, b candidate) int {
		pa, pb := requested[a.pref], requested[b.pref]
		if c := cmp.Compare(pb.Quality, pa.Quality); c != 0 {
			return c
		}
		if c := compareSpecificity(pb.MediaType, pa.MediaType); c != 0 {
			return c
		}
		if c := cmp.Compare(a.offer, b.offer); c != 0 {
			return c
		}
		if c := cmp.Compare(pa.Index, pb.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.pref, b.pref)
	})

	pattern := requested[best.pref]
	return Match{
		MediaType: available[best.offer],
		Quality:   pattern.Quality,
		Pattern:   pattern,
	}, true
}
