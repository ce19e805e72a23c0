package job

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"

	"ticksched/internal/sched"
)

// Load reads and parses the workload at URL. Plain paths and any scheme
// afs understands (file://, mem://, ...) are accepted.
func Load(ctx context.Context, URL string) ([]sched.ProcessSpec, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload %s: %w", URL, err)
	}
	specs, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse workload %s: %w", URL, err)
	}
	return specs, nil
}
