package csv

import (
	"bufio"
	"io"

	"hermannm.dev/wrap"
)

var DelimitersToCheck = []rune{',', ';', '\t', '|'}

// DeduceFieldDelimiter picks the candidate delimiter that occurs most consistently across the
// first maxRowsToCheck lines of the file. If none of the candidates occur, fallback is returned.
func DeduceFieldDelimiter(
	file io.ReadSeeker,
	maxRowsToCheck int,
	fallback rune,
) (delimiter rune, err error) {
	// Resets read position before returning, so the file can be read from the start afterwards
	defer func() {
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil && err == nil {
			err = wrap.Error(seekErr, "failed to reset file position after deducing field delimiter")
		}
	}()

	candidates := newDelimiterCandidateList(DelimitersToCheck)

	scanner := bufio.NewScanner(file)
	for i := 0; i < maxRowsToCheck && scanner.Scan(); i++ {
		line := scanner.Text()
		for i := range candidates {
			candidates[i].updateCounts(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, wrap.Error(err, "failed to read file")
	}

	best, found := candidates.getBestCandidate()
	if !found {
		return fallback, nil
	}
	return best, nil
}

type delimiterCandidate struct {
	delimiter    rune
	highestCount int
	lowestCount  int
}

func (candidate *delimiterCandidate) updateCounts(line string) {
	count := 0
	for _, char := range line {
		if char == candidate.delimiter {
			count++
		}
	}

	if candidate.highestCount == -1 || candidate.highestCount < count {
		candidate.highestCount = count
	}
	if candidate.lowestCount == -1 || candidate.lowestCount > count {
		candidate.lowestCount = count
	}
}

type delimiterCandidateList []delimiterCandidate

func newDelimiterCandidateList(delimiters []rune) delimiterCandidateList {
	list := make(delimiterCandidateList, 0, len(delimiters))
	for _, delimiter := range delimiters {
		list = append(
			list,
			delimiterCandidate{delimiter: delimiter, highestCount: -1, lowestCount: -1},
		)
	}
	return list
}

// A candidate that appears the same number of times on every line beats one that varies, and
// among those, the one that appears most often wins.
func (list delimiterCandidateList) getBestCandidate() (delimiter rune, found bool) {
	var best delimiterCandidate

	for _, candidate := range list {
		if candidate.highestCount <= 0 {
			continue
		}

		consistent := candidate.highestCount == candidate.lowestCount
		bestConsistent := best.highestCount == best.lowestCount

		switch {
		case !found:
			best, found = candidate, true
		case consistent && !bestConsistent:
			best = candidate
		case consistent == bestConsistent && candidate.highestCount > best.highestCount:
			if consistent || candidate.lowestCount != 0 || best.lowestCount == 0 {
				best = candidate
			}
		}
	}

	return best.delimiter, found
}
