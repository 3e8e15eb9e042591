package config

const (
	defaultStateDir     = "~/.local/share/strand/state"
	defaultWorkDir      = "~/.local/share/strand/qc"
	defaultStorageDir   = "~/.local/share/strand/storage"
	defaultLogDir       = "~/.local/share/strand/logs"
	defaultAPIBind      = "127.0.0.1:5050"
	defaultStarIndexDir = "/refs/star_index"
	defaultGTFPath      = "/refs/genomic.gtf"

	defaultFastQCBinary        = "fastqc"
	defaultFastpBinary         = "fastp"
	defaultStarBinary          = "STAR"
	defaultFeatureCountsBinary = "featureCounts"
	defaultToolThreads         = 4

	defaultMaxUploadMiB = 2048

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			WorkDir:    defaultWorkDir,
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		References: References{
			StarIndexDir:  defaultStarIndexDir,
			AnnotationGTF: defaultGTFPath,
		},
		Tools: Tools{
			FastQC:        defaultFastQCBinary,
			Fastp:         defaultFastpBinary,
			Star:          defaultStarBinary,
			FeatureCounts: defaultFeatureCountsBinary,
			Threads:       defaultToolThreads,
		},
		Server: Server{
			MaxUploadMiB: defaultMaxUploadMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
