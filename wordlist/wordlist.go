//Package wordlist renders wormhole codes. A code is the nameplate
//number followed by two words from the PGP word list's even
//(two-syllable) column, indexed by the first two bytes of the
//mailbox ID. Only the number is load-bearing; the words exist so
//humans can speak the code without transcription errors.
package wordlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nickjhughes/go-wormhole/msg"
)

//evenWords is the even (two-syllable) column of the PGP word list,
//lowercased, indexed by byte value
var evenWords = [256]string{
	"aardvark", "absurd", "accrue", "acme", "adrift", "adult",
	"afflict", "ahead", "aimless", "algol", "allow", "alone",
	"ammo", "ancient", "apple", "artist", "assume", "athens",
	"atlas", "aztec", "baboon", "backfield", "backward", "banjo",
	"beaming", "bedlamp", "beehive", "beeswax", "befriend", "belfast",
	"berserk", "billiard", "bison", "blackjack", "blockade", "blowtorch",
	"bluebird", "bombast", "bookshelf", "brackish", "breadline", "breakup",
	"brickyard", "briefcase", "burbank", "button", "buzzard", "cement",
	"chairlift", "chatter", "checkup", "chisel", "choking", "chopper",
	"christmas", "clamshell", "classic", "classroom", "cleanup", "clockwork",
	"cobra", "commence", "concert", "cowbell", "crackdown", "cranky",
	"crowfoot", "crucial", "crumpled", "crusade", "cubic", "dashboard",
	"deadbolt", "deckhand", "dogsled", "dragnet", "drainage", "dreadful",
	"drifter", "dropper", "drumbeat", "drunken", "dupont", "dwelling",
	"eating", "edict", "egghead", "eightball", "endorse", "endow",
	"enlist", "erase", "escape", "exceed", "eyeglass", "eyetooth",
	"facial", "fallout", "flagpole", "flatfoot", "flytrap", "fracture",
	"framework", "freedom", "frighten", "gazelle", "geiger", "glitter",
	"glucose", "goggles", "goldfish", "gremlin", "guidance", "hamlet",
	"highchair", "hockey", "inchworm", "indoors", "indulge", "inverse",
	"involve", "island", "jawbone", "keyboard", "kickoff", "kiwi",
	"klaxon", "locale", "lockup", "merit", "minnow", "miser",
	"mohawk", "mural", "music", "necklace", "neptune", "newborn",
	"nightbird", "oakland", "obtuse", "offload", "optic", "orca",
	"payday", "peachy", "pheasant", "physique", "playhouse", "pluto",
	"preclude", "prefer", "preshrunk", "printer", "prowler", "pupil",
	"puppy", "python", "quadrant", "quiver", "quota", "ragtime",
	"ratchet", "rebirth", "reform", "regain", "reindeer", "rematch",
	"repay", "retouch", "revenge", "reward", "rhythm", "ribcage",
	"ringbolt", "rocket", "rockslide", "sailboat", "sawdust", "scallion",
	"scenic", "scorecard", "scotland", "seabird", "select", "sentence",
	"shadow", "shamrock", "showgirl", "skullcap", "skydive", "slingshot",
	"slowdown", "snapline", "snapshot", "snowcap", "snowslide", "solo",
	"southward", "soybean", "spaniel", "spearhead", "spellbind", "spheroid",
	"spigot", "spindle", "spyglass", "stagehand", "stagnate", "stairway",
	"standard", "stapler", "steamship", "sterling", "stockman", "stopwatch",
	"stormy", "sugar", "surmount", "suspense", "sweatband", "swelter",
	"tactics", "talon", "tapeworm", "tempest", "tiger", "tissue",
	"tonic", "topmost", "tracker", "transit", "trauma", "treadmill",
	"trojan", "trouble", "tumor", "tunnel", "tycoon", "uncut",
	"unearth", "unwind", "uproot", "upset", "upshot", "vapor",
	"village", "virus", "vulcan", "waffle", "wallet", "watchword",
	"wayside", "willow", "woodlark", "zulu",
}

//Word returns the even word for a byte value
func Word(b byte) string {
	return evenWords[b]
}

//Code forms the human code for a nameplate and its mailbox,
//"N-word-word" over the mailbox ID's first two bytes
func Code(nameplate msg.NameplateID, mailboxID string) string {
	//Mailbox IDs are 13 characters, but be safe about it
	var b0, b1 byte
	if len(mailboxID) > 0 {
		b0 = mailboxID[0]
	}
	if len(mailboxID) > 1 {
		b1 = mailboxID[1]
	}

	return fmt.Sprintf("%s-%s-%s", nameplate, Word(b0), Word(b1))
}

//ParseCode extracts the nameplate number from a code. The word
//portion is not verified; it exists for human transcription only
func ParseCode(code string) (msg.NameplateID, error) {
	num, _, found := strings.Cut(code, "-")
	if !found {
		num = code
	}

	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid code '%s': expected to start with a nameplate number", code)
	}

	return msg.NameplateID(n), nil
}
