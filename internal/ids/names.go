package ids

import (
	"math/rand/v2"
	"regexp"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
)

var validAgentName = regexp.MustCompile(`^[A-Za-z0-9]+$`)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

const maxNameAttempts = 1000

// NameTaken reports whether name is already used within a project. Callers
// (internal/store) supply this as a closure over an Index Store lookup so
// this package stays free of any storage dependency.
type NameTaken func(name string) (bool, error)

// UniqueAgentName implements unique_agent_name(project, hint?):
//   - if hint sanitizes to a non-empty alnum string <= 40 chars and is free, use it.
//   - otherwise pick uniformly at random adjective+noun, retrying up to 1000 times.
func UniqueAgentName(hint string, taken NameTaken) (string, error) {
	hint = nonAlnum.ReplaceAllString(hint, "")
	if hint != "" && len(hint) <= 40 {
		ok, err := taken(hint)
		if err != nil {
			return "", err
		}
		if !ok {
			return hint, nil
		}
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		candidate := adjectives[rand.IntN(len(adjectives))] + nouns[rand.IntN(len(nouns))]
		ok, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !ok {
			return candidate, nil
		}
	}

	return "", apperr.New(apperr.NameExhaustion, "could not find a free agent name after %d attempts", maxNameAttempts)
}

// ValidAgentName reports whether name matches the agent name invariant
// ([A-Za-z0-9]+).
func ValidAgentName(name string) bool {
	return name != "" && validAgentName.MatchString(name)
}

var adjectives = []string{
	"Amber", "Azure", "Bold", "Bright", "Bronze", "Brave", "Calm", "Clever",
	"Coral", "Crimson", "Crisp", "Dark", "Dawn", "Deep", "Dusty", "Eager",
	"Early", "Ember", "Emerald", "Fair", "Faint", "Fast", "Fierce", "Fleet",
	"Fond", "Frosty", "Gentle", "Gilded", "Golden", "Gray", "Green", "Happy",
	"Hidden", "Honest", "Humble", "Icy", "Indigo", "Ivory", "Jade", "Jolly",
	"Keen", "Kind", "Lively", "Lone", "Loyal", "Lucky", "Lunar", "Merry",
	"Misty", "Mossy", "Muted", "Noble", "Nimble", "Olive", "Opal", "Pale",
	"Plain", "Plucky", "Polar", "Prime", "Proud", "Quick", "Quiet", "Rapid",
	"Restless", "Rich", "Rosy", "Royal", "Ruby", "Rustic", "Sandy", "Scarlet",
	"Shy", "Silent", "Silver", "Sincere", "Skilled", "Sleek", "Slight", "Sly",
	"Smooth", "Solar", "Solid", "Sound", "Spare", "Spry", "Stark", "Steady",
	"Stern", "Stout", "Sturdy", "Subtle", "Sunny", "Sure", "Sweet", "Swift",
	"Tame", "Tart", "Teal", "Tender", "Terse", "Tidy", "Tough", "True",
	"Vast", "Vital", "Vivid", "Warm", "Wild", "Wise", "Witty", "Young",
}

var nouns = []string{
	"Anchor", "Arbor", "Arrow", "Aspen", "Atlas", "Badger", "Basin", "Beacon",
	"Bluff", "Boulder", "Brook", "Cairn", "Canyon", "Castle", "Cedar", "Chapel",
	"Cinder", "Cliff", "Clover", "Comet", "Copper", "Coral", "Cottage", "Creek",
	"Crest", "Current", "Delta", "Dune", "Eagle", "Ember", "Falcon", "Fern",
	"Fjord", "Forge", "Fox", "Garden", "Glacier", "Glen", "Grove", "Gulf",
	"Harbor", "Hawk", "Haven", "Heron", "Hollow", "Hound", "Island", "Ivy",
	"Jasper", "Juniper", "Kestrel", "Lagoon", "Lake", "Lantern", "Ledge", "Lily",
	"Lotus", "Lynx", "Maple", "Marsh", "Meadow", "Mesa", "Mill", "Moor",
	"Moss", "Mountain", "Oak", "Oasis", "Orchard", "Otter", "Owl", "Palm",
	"Pebble", "Pine", "Plain", "Plateau", "Pond", "Prairie", "Quarry", "Quartz",
	"Raven", "Reed", "Reef", "Ridge", "River", "Robin", "Sage", "Sail",
	"Shale", "Shore", "Slate", "Sparrow", "Spring", "Spruce", "Stone", "Stream",
	"Summit", "Swan", "Tarn", "Thicket", "Thistle", "Timber", "Trail", "Valley",
	"Vine", "Vista", "Warbler", "Wharf", "Willow", "Wolf", "Wren", "Zephyr",
}
