package core

import (
	"strconv"
	"strings"
)

// IsPrerelease reports whether a NuGet version carries a release label.
func IsPrerelease(version string) bool {
	_, label, _ := splitVersion(version)
	return label != ""
}

// CompareVersions orders two NuGet version strings, returning -1, 0 or 1.
//
// Numeric parts compare numerically with missing parts as zero, so 1.0 equals
// 1.0.0.0. A release sorts after any prerelease of the same number. Labels
// compare dot-separated, numerically where both sides are numbers and
// case-insensitively otherwise. Build metadata is ignored.
func CompareVersions(a, b string) int {
	aNums, aLabel, aOK := splitVersion(a)
	bNums, bLabel, bOK := splitVersion(b)
	if !aOK || !bOK {
		return sign(strings.Compare(strings.ToLower(a), strings.ToLower(b)))
	}

	for i := 0; i < len(aNums) || i < len(bNums); i++ {
		var x, y int
		if i < len(aNums) {
			x = aNums[i]
		}
		if i < len(bNums) {
			y = bNums[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}

	switch {
	case aLabel == "" && bLabel == "":
		return 0
	case aLabel == "":
		return 1
	case bLabel == "":
		return -1
	}
	return compareLabels(aLabel, bLabel)
}

func splitVersion(v string) (nums []int, label string, ok bool) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v, label = v[:i], v[i+1:]
	}
	if v == "" {
		return nil, "", false
	}
	for _, part := range strings.Split(v, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, "", false
		}
		nums = append(nums, n)
	}
	return nums, label, true
}

func compareLabels(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		x, xErr := strconv.Atoi(aParts[i])
		y, yErr := strconv.Atoi(bParts[i])
		switch {
		case xErr == nil && yErr == nil:
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		case xErr == nil:
			return -1
		case yErr == nil:
			return 1
		default:
			if c := strings.Compare(strings.ToLower(aParts[i]), strings.ToLower(bParts[i])); c != 0 {
				return c
			}
		}
	}
	return sign(len(aParts) - len(bParts))
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
