package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateReferences(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		return errors.New("paths.storage_dir must be set")
	}
	if c.Paths.WorkDir == c.Paths.StorageDir {
		return errors.New("paths.work_dir and paths.storage_dir must differ")
	}
	return nil
}

func (c *Config) validateReferences() error {
	if strings.TrimSpace(c.References.StarIndexDir) == "" {
		return errors.New("references.star_index_dir must be set")
	}
	if strings.TrimSpace(c.References.AnnotationGTF) == "" {
		return errors.New("references.annotation_gtf must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	for key, value := range map[string]string{
		"tools.fastqc":        c.Tools.FastQC,
		"tools.fastp":         c.Tools.Fastp,
		"tools.star":          c.Tools.Star,
		"tools.featurecounts": c.Tools.FeatureCounts,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Tools.Threads <= 0 {
		return errors.New("tools.threads must be positive")
	}
	return nil
}
