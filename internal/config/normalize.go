package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeReferences(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("STRAND_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeReferences() error {
	var err error
	if c.References.StarIndexDir == "" {
		if value, ok := os.LookupEnv("STAR_GENOME_DIR"); ok {
			c.References.StarIndexDir = value
		} else {
			c.References.StarIndexDir = defaultStarIndexDir
		}
	}
	if c.References.StarIndexDir, err = expandPath(c.References.StarIndexDir); err != nil {
		return fmt.Errorf("references.star_index_dir: %w", err)
	}
	if c.References.AnnotationGTF == "" {
		if value, ok := os.LookupEnv("GTF_PATH"); ok {
			c.References.AnnotationGTF = value
		} else {
			c.References.AnnotationGTF = defaultGTFPath
		}
	}
	if c.References.AnnotationGTF, err = expandPath(c.References.AnnotationGTF); err != nil {
		return fmt.Errorf("references.annotation_gtf: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.FastQC) == "" {
		c.Tools.FastQC = defaultFastQCBinary
	}
	if strings.TrimSpace(c.Tools.Fastp) == "" {
		c.Tools.Fastp = defaultFastpBinary
	}
	if strings.TrimSpace(c.Tools.Star) == "" {
		c.Tools.Star = defaultStarBinary
	}
	if strings.TrimSpace(c.Tools.FeatureCounts) == "" {
		c.Tools.FeatureCounts = defaultFeatureCountsBinary
	}
	if c.Tools.Threads <= 0 {
		c.Tools.Threads = defaultToolThreads
	}
}

func (c *Config) normalizeServer() {
	if c.Server.MaxUploadMiB <= 0 {
		c.Server.MaxUploadMiB = defaultMaxUploadMiB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
