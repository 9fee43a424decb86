package features

import "regexp"

// Rhythm is a pacing profile.
type Rhythm struct {
	Name               string
	CutsPerMinute      float64
	TransitionDuration float64
}

// ColorTheme maps a mood keyword to a background color and tint.
type ColorTheme struct {
	Name string
	Hex  string
}

type rhythmEntry struct {
	rhythm  Rhythm
	pattern *regexp.Regexp
}

// DefaultRhythm applies when no rhythm keyword matches.
var DefaultRhythm = Rhythm{Name: "moderate", CutsPerMinute: 12, TransitionDuration: 0.5}

var rhythmTable = []rhythmEntry{
	{Rhythm{Name: "fast", CutsPerMinute: 30, TransitionDuration: 0.3}, regexp.MustCompile(`\b(fast|quick|rapid|energetic|dynamic|upbeat|snappy)\b`)},
	{Rhythm{Name: "slow", CutsPerMinute: 6, TransitionDuration: 1.0}, regexp.MustCompile(`\b(slow|calm|relaxing|gentle|peaceful|meditative)\b`)},
	{Rhythm{Name: "cinematic", CutsPerMinute: 10, TransitionDuration: 0.8}, regexp.MustCompile(`\b(cinematic|epic|dramatic|trailer)\b`)},
	{DefaultRhythm, regexp.MustCompile(`\b(moderate|steady|balanced|normal pace)\b`)},
}

type themeEntry struct {
	theme   ColorTheme
	pattern *regexp.Regexp
}

var themeTable = []themeEntry{
	{ColorTheme{Name: "warm", Hex: "#FF8C42"}, regexp.MustCompile(`\b(warm|golden|sunset|orange|cozy)\b`)},
	{ColorTheme{Name: "cool", Hex: "#4A90E2"}, regexp.MustCompile(`\b(cool|cold|icy|blue|winter)\b`)},
	{ColorTheme{Name: "vintage", Hex: "#C8A165"}, regexp.MustCompile(`\b(vintage|retro|sepia|nostalgic)\b`)},
	{ColorTheme{Name: "dark", Hex: "#1A1A1A"}, regexp.MustCompile(`\b(dark|moody|night|gloomy)\b`)},
	{ColorTheme{Name: "bright", Hex: "#FFF4D6"}, regexp.MustCompile(`\b(bright|sunny|cheerful|vibrant)\b`)},
	{ColorTheme{Name: "pastel", Hex: "#F7C6D9"}, regexp.MustCompile(`\b(pastel|soft colou?rs?|dreamy)\b`)},
	{ColorTheme{Name: "monochrome", Hex: "#808080"}, regexp.MustCompile(`\b(monochrome|black and white|grayscale|greyscale)\b`)},
	{ColorTheme{Name: "neon", Hex: "#FF00FF"}, regexp.MustCompile(`\b(neon|fluorescent)\b`)},
}

type styleEntry struct {
	name    string
	pattern *regexp.Regexp
}

// StyleNames lists the built-in artistic styles in match priority order.
var StyleNames = []string{"cinematic", "vintage", "cyberpunk", "anime", "watercolor", "noir", "minimalist", "documentary"}

var styleTable = []styleEntry{
	{"cinematic", regexp.MustCompile(`\b(cinematic|film look|movie|blockbuster)\b`)},
	{"vintage", regexp.MustCompile(`\b(vintage|retro|old film|film grain|super ?8)\b`)},
	{"cyberpunk", regexp.MustCompile(`\b(cyberpunk|futuristic|sci-?fi|neon city)\b`)},
	{"anime", regexp.MustCompile(`\b(anime|manga|cartoon|cel[- ]shaded)\b`)},
	{"watercolor", regexp.MustCompile(`\b(watercolou?r|painting|painterly|aquarelle)\b`)},
	{"noir", regexp.MustCompile(`\b(noir|black and white film|detective)\b`)},
	{"minimalist", regexp.MustCompile(`\b(minimalist|minimal|clean look|simple)\b`)},
	{"documentary", regexp.MustCompile(`\b(documentary|realistic|news|interview)\b`)},
}

type vocabEntry struct {
	id      string
	pattern *regexp.Regexp
}

// Transition ids.
const (
	TransitionCrossfade = "crossfade"
	TransitionDissolve  = "dissolve"
	TransitionWipe      = "wipe"
	TransitionSlide     = "slide"
	TransitionFlip      = "flip"
	TransitionZoom      = "zoom"
)

var transitionTable = []vocabEntry{
	{TransitionCrossfade, regexp.MustCompile(`\bcross[- ]?fad(e|es|ing)\b`)},
	{TransitionDissolve, regexp.MustCompile(`\bdissolv(e|es|ing)\b`)},
	{TransitionWipe, regexp.MustCompile(`\bwip(e|es|ing)\b`)},
	{TransitionSlide, regexp.MustCompile(`\bslid(e|es|ing)( transitions?)?\b`)},
	{TransitionFlip, regexp.MustCompile(`\bflip(s|ping)?( transitions?)?\b`)},
	{TransitionZoom, regexp.MustCompile(`\bzoom (transitions?|cuts?|between)\b`)},
}

// Filter ids produced by the extractor.
const (
	FilterFadeIn   = "fade_in"
	FilterFadeOut  = "fade_out"
	FilterSubtitle = "subtitle"
	FilterBlur     = "blur"
	FilterZoom     = "zoom"
	FilterRotate   = "rotate"
	FilterGlow     = "glow"
)

var (
	fadePattern     = regexp.MustCompile(`\bfad(?:e|es|ed|ing)(?:[- ]?(in|out))?(?:\s*(?:/|and|&|-)\s*(in|out))?\b`)
	subtitlePattern = regexp.MustCompile(`\b(subtitles?|captions?|captioned|text overlays?|on-screen text|text)\b`)
)

var filterTable = []vocabEntry{
	{FilterBlur, regexp.MustCompile(`\bblur(s|red|ry|ring)?\b`)},
	{FilterZoom, regexp.MustCompile(`\bzoom(s|ed|ing)?\b`)},
	{FilterRotate, regexp.MustCompile(`\b(rotat\w*|spin\w*|flip\w*)\b`)},
	{FilterGlow, regexp.MustCompile(`\bglow\w*\b`)},
}

var musicPattern = regexp.MustCompile(`\b(music|musical|soundtrack|bgm|songs?|background audio)\b`)

var positionPattern = regexp.MustCompile(`\b(?:at|in|on|to) the (top|bottom|upper|lower)?[- ]?(left|right|center|centre|middle)?\b`)

var numberWords = []struct {
	word  *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`\bhalf a minute\b`), "30 seconds"},
	{regexp.MustCompile(`\ba minute\b`), "1 minute"},
	{regexp.MustCompile(`\bforty[- ]five\b`), "45"},
	{regexp.MustCompile(`\bninety\b`), "90"},
	{regexp.MustCompile(`\bsixty\b`), "60"},
	{regexp.MustCompile(`\bforty\b`), "40"},
	{regexp.MustCompile(`\bthirty\b`), "30"},
	{regexp.MustCompile(`\btwenty\b`), "20"},
	{regexp.MustCompile(`\bfifteen\b`), "15"},
	{regexp.MustCompile(`\bten\b`), "10"},
	{regexp.MustCompile(`\bfive\b`), "5"},
	{regexp.MustCompile(`\bfour\b`), "4"},
	{regexp.MustCompile(`\bthree\b`), "3"},
	{regexp.MustCompile(`\btwo\b`), "2"},
	{regexp.MustCompile(`\bone\b`), "1"},
}
