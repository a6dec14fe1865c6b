package config

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("gcs" or "local").
	BucketName      string `yaml:"bucket_name"`      // Default bucket used when a call passes none.
	CredentialsFile string `yaml:"credentials_file"` // Service account key file for GCS. Empty uses ADC.
	Endpoint        string `yaml:"endpoint"`         // Alternate GCS endpoint (emulators). Disables authentication.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system storage.
}
