package training

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// ProgressBar provides PyTorch-style training progress visualization
type ProgressBar struct {
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	showRate    bool
	showETA     bool
	metrics     Metrics
	out         io.Writer
}

// NewProgressBar creates a new progress bar
func NewProgressBar(description string, total int) *ProgressBar {
	return &ProgressBar{
		description: description,
		total:       total,
		current:     0,
		startTime:   time.Now(),
		width:       70, // Character width of progress bar
		showRate:    true,
		showETA:     true,
		metrics:     make(Metrics),
		out:         os.Stdout,
	}
}

// SetWriter redirects the bar output, mainly for tests
func (pb *ProgressBar) SetWriter(w io.Writer) {
	if w != nil {
		pb.out = w
	}
}

// Update advances the progress bar
func (pb *ProgressBar) Update(step int, metrics Metrics) {
	pb.current = step
	pb.metrics = metrics
	pb.render()
}

// UpdateMetrics updates metrics without advancing progress
func (pb *ProgressBar) UpdateMetrics(metrics Metrics) {
	for k, v := range metrics {
		pb.metrics[k] = v
	}
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out) // New line after completion
}

// FinishEarly terminates the bar partway through and prints the stop reason
func (pb *ProgressBar) FinishEarly(epoch int, reason string) {
	pb.render()
	fmt.Fprintln(pb.out)
	if reason != "" {
		fmt.Fprintf(pb.out, "Stopping early at epoch %d: %s\n", epoch, reason)
	}
}

// render draws the progress bar
func (pb *ProgressBar) render() {
	// Calculate progress percentage
	percentage := float64(pb.current) / float64(pb.total)
	if percentage > 1.0 {
		percentage = 1.0
	}

	// Calculate filled width
	filled := int(percentage * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	// Build progress bar string
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	// Calculate timing information
	elapsed := time.Since(pb.startTime)
	var eta time.Duration
	var rate float64

	if pb.current > 0 {
		rate = float64(pb.current) / elapsed.Seconds()
		if percentage > 0 {
			totalTime := time.Duration(float64(elapsed) / percentage)
			eta = totalTime - elapsed
		}
	}

	// Format the progress line
	line := fmt.Sprintf("\r%s: %3.0f%%|%s| %d/%d",
		pb.description,
		percentage*100,
		bar,
		pb.current,
		pb.total,
	)

	// Add timing information
	if pb.showETA && eta > 0 {
		line += fmt.Sprintf(" [%s<%s",
			formatDuration(elapsed),
			formatDuration(eta),
		)
	} else {
		line += fmt.Sprintf(" [%s<00:00",
			formatDuration(elapsed),
		)
	}

	// Add rate information
	if pb.showRate && rate > 0 {
		line += fmt.Sprintf(", %.2fepoch/s", rate)
	}

	// Add metrics in name order so lines render the same way every time
	names := make([]string, 0, len(pb.metrics))
	for name := range pb.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := pb.metrics[name]
		if strings.Contains(name, "accuracy") || strings.Contains(name, "acc") {
			line += fmt.Sprintf(", %s=%.2f%%", name, value*100)
		} else {
			line += fmt.Sprintf(", %s=%.3f", name, value)
		}
	}

	line += "]"

	// Print the line (carriage return overwrites previous line)
	fmt.Fprint(pb.out, line)
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
