package transform

import (
	"regexp"
	"strconv"
	"strings"
)

// The product catalog is mostly bicycles described only by a free-text name,
// so the structured attributes below are mined from that text with keyword
// vocabularies and a handful of patterns. Everything stays nil for products
// that are not bicycles.

var (
	reBicycle      = regexp.MustCompile(`(?i)\bbicicleta\b`)
	reBikeAlias    = regexp.MustCompile(`(?i)\b(bike|bke)\b`)
	reBikeExcluded = regexp.MustCompile(`(?i)\bcaixa\b|\bembalagem\b|\badesivo\b`)

	reWheelSize = regexp.MustCompile(`(?i)\baro[:\s]*(\d{1,2})\b`)

	reColorList = regexp.MustCompile(`(?i)cor:\s*([^;]+)`)
	reColorPair = regexp.MustCompile(`(?i)([\p{L}]+)\s+com\s+([\p{L}]+)`)

	reFrameSize      = regexp.MustCompile(`(?i)tamanho[:\s]*(\d{1,2})`)
	reFrameSizeExtra = regexp.MustCompile(`(?i)[a-z]\s+(\d{2})$`)

	reNoGears = regexp.MustCompile(`(?i)sem\s+marchas?`)
	reGears   = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:vel\b|v\b|velocidades?|marchas?)`)

	reBrakeHydraulic = regexp.MustCompile(`(?i)hidr[aá]ulico|hidraulico`)
	reBrakeDisc      = regexp.MustCompile(`(?i)disco\s+mec[aâ]nico|freio\s+a?\s*disco`)
	reBrakeVBrake    = regexp.MustCompile(`(?i)v-brake|v\s*brake|vbrake`)

	reGenderFemale = regexp.MustCompile(`(?i)\bfeminin[oa]\b|\bfem\b|\bmeninas?\b|\bmulher\b|\bdama\b`)
	reGenderMale   = regexp.MustCompile(`(?i)\bmasculin[oa]\b|\bmasc\b|\bmeninos?\b|\bhomem\b`)
	reGenderUnisex = regexp.MustCompile(`(?i)\bunissex\b|\bunisex\b`)

	reAudienceChild = regexp.MustCompile(`(?i)\binfantil\b|\bcrian[cç]a\b|\bkids\b`)
	reAudienceTeen  = regexp.MustCompile(`(?i)\bjuvenil\b|\badolescente\b`)
	reAudienceAdult = regexp.MustCompile(`(?i)\badulto\b`)

	reCategoryElectric = regexp.MustCompile(`(?i)\bel[eé]trica\b|\beletrica\b|\be-bike\b`)
	reCategoryMTB      = regexp.MustCompile(`(?i)\bmtb\b|\bmountain\b`)
	reCategorySpeed    = regexp.MustCompile(`(?i)\bspeed\b|\broad\b`)
	reCategoryUrban    = regexp.MustCompile(`(?i)\burbana\b|\bpasseio\b`)
	reCategoryBMX      = regexp.MustCompile(`(?i)\bbmx\b`)
)

// knownWheelSizes is the fallback when no explicit "aro" marker is present.
var knownWheelSizes = []string{"12", "14", "16", "18", "20", "24", "26", "27", "28", "29", "700"}

var knownColors = []string{
	"PRETO", "BRANCO", "VERMELHO", "AZUL", "VERDE", "AMARELO", "ROSA", "ROXO",
	"LARANJA", "CINZA", "PRATA", "DOURADO", "BEGE", "MARROM", "VINHO",
	"TURQUESA", "CORAL", "NUDE", "PINK", "LILÁS", "LILAS", "GRAFITE", "CHUMBO",
	"CHAMPAGNE", "PRETO FOSCO", "AZUL MARINHO", "AZUL CLARO", "VERDE MILITAR",
	"VERDE LIMÃO", "VERDE NEON", "VERDE PÉROLA", "VERDE PEROLA",
	"VERMELHO FERRARI", "AMARELO NEON", "ROSA PINK", "AMARELO DEGRADE",
}

var knownFrameSizes = map[string]bool{
	"13": true, "15": true, "17": true, "19": true, "21": true,
	"48": true, "50": true, "52": true, "54": true, "56": true, "58": true,
}

// Longer variants come first so the combined pattern prefers them.
var knownBrands = []string{
	"KSW", "CALOI", "OGGI", "TSW", "SENSE", "ABSOLUTE", "COLLI", "HOUSTON",
	"TRACK", "SOUTH", "AUDAX", "SCOTT", "GIANT", "TREK", "SPECIALIZED",
	"CANNONDALE", "MOSSO", "VIKING", "FIRST", "GIOS", "GT", "SCHWINN",
	"LOTUS", "SOUL", "GROOVE", "KODE", "OPTIMUS", "VENZO", "ALFAMEQ",
	"ATHOR", "GONEW", "GTSM1", "SHIMANO", "NATHOR", "BANDEIRANTE", "MONARK",
	"POTI", "VERDEN", "OXER", "DROPP", "REDSTONE", "ELLEVEN", "HIGH ONE",
	"MOVE", "KALF", "LAHSEN", "RAVA", "BMC", "MERIDA", "CUBE", "ORBEA",
	"SAMY", "SOUSA", "GTI", "GTA NX11", "GTA NX", "GTA", "WENDY", "KOG",
	"PRO X", "VIKINGX", "HUPI", "KSX",
}

var brandCorrections = map[string]string{
	"ABOSOLUTE": "ABSOLUTE",
	"ABSOLUT":   "ABSOLUTE",
	"ABSOLUTY":  "ABSOLUTE",
}

var (
	reBrands          = regexp.MustCompile(`\b(` + strings.Join(knownBrands, "|") + `)\b`)
	colorsByLength    []string
	colorVocabulary   = map[string]bool{}
	brandCorrectionRE = map[*regexp.Regexp]string{}
)

func init() {
	for _, color := range knownColors {
		colorVocabulary[color] = true
	}
	colorsByLength = append(colorsByLength, knownColors...)
	// Longest first so compound colors win over their components.
	for i := 1; i < len(colorsByLength); i++ {
		for j := i; j > 0 && len(colorsByLength[j]) > len(colorsByLength[j-1]); j-- {
			colorsByLength[j], colorsByLength[j-1] = colorsByLength[j-1], colorsByLength[j]
		}
	}
	for typo, fixed := range brandCorrections {
		brandCorrectionRE[regexp.MustCompile(`\b`+typo+`\b`)] = fixed
	}
}

// IsBicycle reports whether a product name denotes a bicycle. "bicicleta"
// always qualifies; "bike"/"bke" only qualify when no packaging or sticker
// term is present.
func IsBicycle(name string) bool {
	if reBicycle.MatchString(name) {
		return true
	}
	return reBikeAlias.MatchString(name) && !reBikeExcluded.MatchString(name)
}

// BikeAttrs holds the attributes mined from a bicycle's name. Fields a name
// does not mention stay nil.
type BikeAttrs struct {
	WheelSize      *string
	Brand          *string
	PrimaryColor   *string
	SecondaryColor *string
	TertiaryColor  *string
	FrameSize      *string
	Gears          *int
	BrakeType      *string
	Gender         *string
	Audience       *string
	Category       *string
}

// ClassifyBike extracts every structured attribute from a bicycle name. Each
// classifier tries its markers in priority order and gives up with nil.
func ClassifyBike(name string) BikeAttrs {
	colors := extractColors(name)
	attrs := BikeAttrs{
		WheelSize: extractWheelSize(name),
		Brand:     extractBrand(name),
		FrameSize: extractFrameSize(name),
		Gears:     extractGears(name),
		BrakeType: detectBrake(name),
		Gender:    classifyGender(name),
		Audience:  classifyAudience(name),
		Category:  classifyCategory(name),
	}
	if len(colors) > 0 {
		attrs.PrimaryColor = strPtr(colors[0])
	}
	if len(colors) > 1 {
		attrs.SecondaryColor = strPtr(colors[1])
	}
	if len(colors) > 2 {
		attrs.TertiaryColor = strPtr(colors[2])
	}
	return attrs
}

func extractWheelSize(name string) *string {
	if m := reWheelSize.FindStringSubmatch(name); m != nil {
		return strPtr(m[1])
	}
	for _, size := range knownWheelSizes {
		if regexp.MustCompile(`\b` + size + `\b`).MatchString(name) {
			return strPtr(size)
		}
	}
	return nil
}

func extractColors(name string) []string {
	if m := reColorList.FindStringSubmatch(name); m != nil {
		var colors []string
		for _, part := range regexp.MustCompile(`[+/]`).Split(m[1], -1) {
			if part = strings.TrimSpace(part); part != "" {
				colors = append(colors, part)
			}
		}
		if len(colors) > 0 {
			return colors
		}
	}

	// "X com Y" keeps the written order, but only when both words really are
	// colors, otherwise phrases like "quadro com suspensão" would misfire.
	if m := reColorPair.FindStringSubmatch(name); m != nil {
		first, second := strings.ToUpper(m[1]), strings.ToUpper(m[2])
		if colorVocabulary[first] && colorVocabulary[second] {
			return []string{titleCase(first), titleCase(second)}
		}
	}

	var colors []string
	upper := strings.ToUpper(name)
	for _, color := range colorsByLength {
		if regexp.MustCompile(`\b` + regexp.QuoteMeta(color) + `\b`).MatchString(upper) {
			colors = append(colors, titleCase(color))
			upper = strings.Replace(upper, color, "", 1)
		}
	}
	return colors
}

func extractFrameSize(name string) *string {
	if m := reFrameSize.FindStringSubmatch(name); m != nil {
		return strPtr(m[1])
	}
	// A trailing two-digit number after a letter is a frame size only when it
	// belongs to the usual inch/centimeter series, otherwise it is more
	// likely a wheel size or gear count.
	if m := reFrameSizeExtra.FindStringSubmatch(name); m != nil && knownFrameSizes[m[1]] {
		return strPtr(m[1])
	}
	return nil
}

func extractGears(name string) *int {
	if reNoGears.MatchString(name) {
		return intPtr(0)
	}
	if m := reGears.FindStringSubmatch(strings.ToLower(name)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return intPtr(n)
		}
	}
	return nil
}

// detectBrake checks hydraulic first so a plain "disco" mention never
// shadows the hydraulic variant.
func detectBrake(name string) *string {
	switch {
	case reBrakeHydraulic.MatchString(name):
		return strPtr("Disco Hidráulico")
	case reBrakeDisc.MatchString(name):
		return strPtr("Disco Mecânico")
	case reBrakeVBrake.MatchString(name):
		return strPtr("V-Brake")
	}
	return nil
}

func extractBrand(name string) *string {
	upper := strings.ToUpper(name)
	for re, fixed := range brandCorrectionRE {
		if re.MatchString(upper) {
			return strPtr(fixed)
		}
	}
	if m := reBrands.FindStringSubmatch(upper); m != nil {
		return strPtr(m[1])
	}
	return nil
}

func classifyGender(name string) *string {
	switch {
	case reGenderFemale.MatchString(name):
		return strPtr("Feminino")
	case reGenderMale.MatchString(name):
		return strPtr("Masculino")
	case reGenderUnisex.MatchString(name):
		return strPtr("Unissex")
	}
	return nil
}

func classifyAudience(name string) *string {
	switch {
	case reAudienceChild.MatchString(name):
		return strPtr("Infantil")
	case reAudienceTeen.MatchString(name):
		return strPtr("Juvenil")
	case reAudienceAdult.MatchString(name):
		return strPtr("Adulto")
	}
	return nil
}

func classifyCategory(name string) *string {
	switch {
	case reCategoryElectric.MatchString(name):
		return strPtr("Elétrica")
	case reCategoryMTB.MatchString(name):
		return strPtr("MTB")
	case reCategorySpeed.MatchString(name):
		return strPtr("Speed")
	case reCategoryUrban.MatchString(name):
		return strPtr("Urbana")
	case reCategoryBMX.MatchString(name):
		return strPtr("BMX")
	}
	return nil
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
