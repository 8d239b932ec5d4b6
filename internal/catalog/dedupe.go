package catalog

import (
	"strings"

	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/textnorm"
)

// Key identifies "the same song": normalized title plus lowercased primary artist.
type Key struct {
	Name   string
	Artist string
}

// KeyOf computes the grouping key of a track.
func KeyOf(t domain.Track) Key {
	return Key{
		Name:   textnorm.Normalize(t.Name),
		Artist: strings.ToLower(t.PrimaryArtist()),
	}
}

// Group is a set of recordings of one song. Representative is the variant used
// to back a quiz question; Variants lists every kept recording in catalog order.
type Group struct {
	Key            Key
	Representative domain.Track
	Variants       []domain.Track
}

// Names returns the distinct original titles of the group's variants.
func (g Group) Names() []string {
	seen := make(map[string]struct{}, len(g.Variants))
	names := make([]string, 0, len(g.Variants))
	for _, v := range g.Variants {
		if _, ok := seen[v.Name]; ok {
			continue
		}
		seen[v.Name] = struct{}{}
		names = append(names, v.Name)
	}
	return names
}

// Deduplicate groups tracks by Key, preserving order of first appearance.
//
// The representative of each group is the first variant with a clean title
// ("Song" over "Song (Remix)"), or the first variant when none is clean.
// For the track subject every variant is retained so all released titles are
// accepted as answers. For artist and album subjects a group collapses to its
// representative.
func Deduplicate(tracks []domain.Track, mode domain.SubjectMode) []Group {
	index := make(map[Key]int, len(tracks))
	clean := make([]bool, 0, len(tracks))
	groups := make([]Group, 0, len(tracks))

	for _, t := range tracks {
		k := KeyOf(t)
		isClean := textnorm.IsClean(t.Name)
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, Group{Key: k, Representative: t, Variants: []domain.Track{t}})
			clean = append(clean, isClean)
			continue
		}
		groups[i].Variants = append(groups[i].Variants, t)
		if isClean && !clean[i] {
			groups[i].Representative = t
			clean[i] = true
		}
	}

	if mode != domain.SubjectTrack {
		for i := range groups {
			groups[i].Variants = []domain.Track{groups[i].Representative}
		}
	}
	return groups
}
