package validation

// DefaultDataSplitter implements the DataSplitter interface
type DefaultDataSplitter struct{}

// NewDefaultDataSplitter creates a new default data splitter
func NewDefaultDataSplitter() *DefaultDataSplitter {
	return &DefaultDataSplitter{}
}

// SplitIndex returns floor(length * ratio), the size of the leading segment.
func (s *DefaultDataSplitter) SplitIndex(length int, ratio float64) int {
	if length <= 0 || ratio <= 0 {
		return 0
	}
	if ratio >= 1 {
		return length
	}
	return int(float64(length) * ratio)
}

// CreateFolds cuts [0, length) into foldCount contiguous, non-overlapping,
// chronologically ordered folds of length/foldCount candles, the last one
// absorbing the remainder. Each fold is split at ratio of its length.
func (s *DefaultDataSplitter) CreateFolds(length, foldCount int, ratio float64) []FoldRange {
	if length <= 0 || foldCount <= 0 {
		return nil
	}
	foldSize := length / foldCount
	if foldSize == 0 {
		return nil
	}

	folds := make([]FoldRange, 0, foldCount)
	for fold := 0; fold < foldCount; fold++ {
		start := fold * foldSize
		end := start + foldSize
		if fold == foldCount-1 {
			end = length
		}
		folds = append(folds, FoldRange{
			Index: fold,
			Start: start,
			Split: start + s.SplitIndex(end-start, ratio),
			End:   end,
		})
	}
	return folds
}

// Package-level convenience functions

// CreateFolds is a convenience function that uses the default splitter
func CreateFolds(length, foldCount int, ratio float64) []FoldRange {
	return NewDefaultDataSplitter().CreateFolds(length, foldCount, ratio)
}
