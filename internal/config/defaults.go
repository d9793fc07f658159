package config

const (
	defaultCacheDirFallback = "~/.cache/unflatten"
	defaultDataDirFallback  = "~/.local/share/unflatten"
	defaultLogDir           = "~/.local/share/unflatten/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultHashPages        = 3
	defaultDPI              = 150
	defaultHashGrid         = 64
	defaultImageGrid        = 128
	defaultOCRLanguage      = "eng"
	defaultPdftoppmBinary   = "pdftoppm"
	defaultPdfinfoBinary    = "pdfinfo"
	defaultTesseractBinary  = "tesseract"
	defaultTextThreshold    = 0.8
	defaultVisualThreshold  = 0.9
	defaultMinWords         = 5
	defaultImageDecay       = 1000.0
	defaultKeepRuns         = 50
)

var (
	defaultStrategy  = []string{"text", "hash"}
	defaultJunkNames = []string{"Thumbs.db", ".DS_Store", "desktop.ini"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			DataDir:  defaultDataDir(),
			LogDir:   defaultLogDir,
		},
		Scan: Scan{
			CacheEnabled:   true,
			JunkNames:      append([]string(nil), defaultJunkNames...),
			LazySignatures: true,
		},
		Fingerprint: Fingerprint{
			HashPages:        defaultHashPages,
			DPI:              defaultDPI,
			HashGrid:         defaultHashGrid,
			ImageGrid:        defaultImageGrid,
			StripAnnotations: true,
			OCRLanguage:      defaultOCRLanguage,
			PdftoppmBinary:   defaultPdftoppmBinary,
			PdfinfoBinary:    defaultPdfinfoBinary,
			TesseractBinary:  defaultTesseractBinary,
		},
		Matching: Matching{
			Strategy:        append([]string(nil), defaultStrategy...),
			TextThreshold:   defaultTextThreshold,
			VisualThreshold: defaultVisualThreshold,
			MinWords:        defaultMinWords,
			ImageDecay:      defaultImageDecay,
		},
		Restore: Restore{
			PreserveTimes: true,
		},
		Report: Report{
			Enabled:  true,
			KeepRuns: defaultKeepRuns,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
