package messages

import (
	"fmt"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/go-smartschool/go-smartschool/client"
)

// CLIReporter draws one progress bar per downloaded attachment.
type CLIReporter struct {
	progress *mpb.Progress
	bars     map[int]*mpb.Bar
	mu       sync.Mutex
}

var _ client.ProgressReporter = (*CLIReporter)(nil)

func NewCLIReporter() *CLIReporter {
	return &CLIReporter{
		progress: mpb.New(mpb.WithWidth(60)),
		bars:     make(map[int]*mpb.Bar),
	}
}

func (r *CLIReporter) Report(p client.ProgressReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bar, ok := r.bars[p.Current]
	if !ok {
		total := p.TotalBytes
		if total < 0 {
			total = 0
		}
		status := fmt.Sprintf("📎 %d/%d %s", p.Current, p.Total, truncateString(p.Name, 20))
		bar = r.progress.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("%-30s", status), decor.WCSyncSpaceR),
				decor.Counters(decor.SizeB1024(0), "% .2f / % .2f", decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncSpace),
				decor.Name(" | "),
				decor.OnComplete(
					decor.AverageETA(decor.ET_STYLE_GO), "✨ Done!",
				),
			),
		)
		r.bars[p.Current] = bar
	}

	if p.TotalBytes <= 0 && p.BytesRead > 0 {
		bar.SetTotal(p.BytesRead, false)
	}
	bar.SetCurrent(p.BytesRead)
	if p.TotalBytes > 0 && p.BytesRead >= p.TotalBytes {
		bar.SetTotal(p.TotalBytes, true)
	}
}

// Finish completes every bar, including those whose size was unknown.
func (r *CLIReporter) Finish() {
	r.mu.Lock()
	for _, bar := range r.bars {
		bar.SetTotal(-1, true)
	}
	r.mu.Unlock()
	r.progress.Wait()
}
