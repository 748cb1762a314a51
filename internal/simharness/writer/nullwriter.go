package writer

import "time"

// NopWriter discards every row. Used when CSV output is disabled.
type NopWriter struct{}

func (NopWriter) WriteRow(node, event string, detail time.Duration) error { return nil }
func (NopWriter) Flush() error                                            { return nil }
func (NopWriter) Close() error                                            { return nil }
