package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the settings the batch loop cannot run without.
// All problems are reported at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	b := c.Blobtosql.Batch

	if b.BatchSize < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.batch_size must be positive, got %d", b.BatchSize))
	}
	if b.RangeWidth < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.range_width must be positive, got %d", b.RangeWidth))
	}
	if b.TransferSize < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.transfer_size must be positive, got %d", b.TransferSize))
	}
	if b.MaxBatchNumber < 0 {
		result = multierror.Append(result, fmt.Errorf("batch.max_batch_number must not be negative, got %d", b.MaxBatchNumber))
	}
	switch strings.ToLower(b.DuplicatePolicy) {
	case "fail", "upsert", "skip":
	default:
		result = multierror.Append(result, fmt.Errorf("batch.duplicate_policy must be one of fail, upsert, skip, got '%s'", b.DuplicatePolicy))
	}
	if b.DestinationTable == "" {
		result = multierror.Append(result, fmt.Errorf("batch.destination_table must not be empty"))
	}
	if len([]rune(c.Blobtosql.Source.Delimiter)) != 1 {
		result = multierror.Append(result, fmt.Errorf("source.delimiter must be a single character, got '%s'", c.Blobtosql.Source.Delimiter))
	}
	switch c.Blobtosql.Checkpoint.Backend {
	case "database", "redis":
	default:
		result = multierror.Append(result, fmt.Errorf("checkpoint.backend must be 'database' or 'redis', got '%s'", c.Blobtosql.Checkpoint.Backend))
	}
	if c.Blobtosql.Queue.RangeQueue == "" {
		result = multierror.Append(result, fmt.Errorf("queue.range_queue must not be empty"))
	}
	if l := c.Blobtosql.Lease; l.Enabled {
		if l.TTLSeconds < 1 {
			result = multierror.Append(result, fmt.Errorf("lease.ttl_seconds must be positive, got %d", l.TTLSeconds))
		}
		if l.RenewIntervalSeconds < 1 || l.RenewIntervalSeconds >= l.TTLSeconds {
			result = multierror.Append(result, fmt.Errorf("lease.renew_interval_seconds must be between 1 and ttl_seconds-1, got %d", l.RenewIntervalSeconds))
		}
	}
	switch c.Blobtosql.Telemetry.OTLPProtocol {
	case "grpc", "http":
	default:
		result = multierror.Append(result, fmt.Errorf("telemetry.otlp_protocol must be 'grpc' or 'http', got '%s'", c.Blobtosql.Telemetry.OTLPProtocol))
	}

	return result.ErrorOrNil()
}
