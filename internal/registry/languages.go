package registry

// Supported language codes, matching the code set of the upstream OCR models.
// Codes are compared after canonicalization (lower-case, trimmed).
var supported = map[string]struct{}{
	"abq": {}, "ady": {}, "af": {}, "ang": {}, "ar": {}, "as": {}, "ava": {},
	"az": {}, "be": {}, "bg": {}, "bh": {}, "bho": {}, "bn": {}, "bs": {},
	"ch_sim": {}, "ch_tra": {}, "che": {}, "cs": {}, "cy": {}, "da": {},
	"dar": {}, "de": {}, "en": {}, "es": {}, "et": {}, "fa": {}, "fr": {},
	"ga": {}, "gom": {}, "hi": {}, "hr": {}, "hu": {}, "id": {}, "inh": {},
	"is": {}, "it": {}, "ja": {}, "kbd": {}, "kn": {}, "ko": {}, "ku": {},
	"la": {}, "lbe": {}, "lez": {}, "lt": {}, "lv": {}, "mah": {}, "mai": {},
	"mi": {}, "mn": {}, "mr": {}, "ms": {}, "mt": {}, "ne": {}, "new": {},
	"nl": {}, "no": {}, "oc": {}, "pi": {}, "pl": {}, "pt": {}, "ro": {},
	"ru": {}, "rs_cyrillic": {}, "rs_latin": {}, "sck": {}, "sk": {},
	"sl": {}, "sq": {}, "sv": {}, "sw": {}, "ta": {}, "tab": {}, "te": {},
	"th": {}, "tjk": {}, "tl": {}, "tr": {}, "ug": {}, "uk": {}, "ur": {},
	"uz": {}, "vi": {},
}

// tesseractNames maps language codes to tesseract traineddata names for the
// in-process engine. Codes without a mapping are only usable via the bridge.
var tesseractNames = map[string]string{
	"af": "afr", "ar": "ara", "az": "aze", "be": "bel", "bg": "bul",
	"bn": "ben", "bs": "bos", "ch_sim": "chi_sim", "ch_tra": "chi_tra",
	"cs": "ces", "cy": "cym", "da": "dan", "de": "deu", "en": "eng",
	"es": "spa", "et": "est", "fa": "fas", "fr": "fra", "ga": "gle",
	"hi": "hin", "hr": "hrv", "hu": "hun", "id": "ind", "is": "isl",
	"it": "ita", "ja": "jpn", "kn": "kan", "ko": "kor", "la": "lat",
	"lt": "lit", "lv": "lav", "mi": "mri", "mn": "mon", "mr": "mar",
	"ms": "msa", "mt": "mlt", "ne": "nep", "nl": "nld", "no": "nor",
	"oc": "oci", "pl": "pol", "pt": "por", "ro": "ron", "ru": "rus",
	"sk": "slk", "sl": "slv", "sq": "sqi", "sv": "swe", "sw": "swa",
	"ta": "tam", "te": "tel", "th": "tha", "tl": "tgl", "tr": "tur",
	"ug": "uig", "uk": "ukr", "ur": "urd", "uz": "uzb", "vi": "vie",
}

// IsSupported reports whether the language code can be loaded by an engine.
func IsSupported(code string) bool {
	_, ok := supported[code]
	return ok
}

// Count returns the number of supported language codes.
func Count() int { return len(supported) }

// TesseractName maps a language code to its tesseract traineddata name.
func TesseractName(code string) (string, bool) {
	name, ok := tesseractNames[code]
	return name, ok
}
