package join

import (
	"fmt"
	"strings"

	"github.com/spirit-labs/streamjoin/errors"
)

type JoinType int

const JoinTypeUnknown = JoinType(-1)
const JoinTypeInner = JoinType(0)
const JoinTypeLeftOuter = JoinType(1)
const JoinTypeRightOuter = JoinType(2)
const JoinTypeFullOuter = JoinType(3)
const JoinTypeLeftSemi = JoinType(4)
const JoinTypeRightSemi = JoinType(5)
const JoinTypeLeftAnti = JoinType(6)
const JoinTypeRightAnti = JoinType(7)

var joinTypeNames = map[JoinType]string{
	JoinTypeInner:      "inner",
	JoinTypeLeftOuter:  "left_outer",
	JoinTypeRightOuter: "right_outer",
	JoinTypeFullOuter:  "full_outer",
	JoinTypeLeftSemi:   "left_semi",
	JoinTypeRightSemi:  "right_semi",
	JoinTypeLeftAnti:   "left_anti",
	JoinTypeRightAnti:  "right_anti",
}

func (j JoinType) String() string {
	if name, ok := joinTypeNames[j]; ok {
		return name
	}
	return fmt.Sprintf("JoinType(%d)", int(j))
}

// ParseJoinType accepts names such as "left_outer", "left outer" or "LeftOuter".
func ParseJoinType(s string) (JoinType, error) {
	norm := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	for jt, name := range joinTypeNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return jt, nil
		}
	}
	return JoinTypeUnknown, errors.NewInvalidConfigurationError(fmt.Sprintf("unknown join type '%s'", s))
}

type Side int

const SideLeft = Side(0)
const SideRight = Side(1)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

func (s Side) Opposite() Side {
	return 1 - s
}

func (j JoinType) IsInner() bool {
	return j == JoinTypeInner
}

func (j JoinType) IsOuter() bool {
	return j == JoinTypeLeftOuter || j == JoinTypeRightOuter || j == JoinTypeFullOuter
}

func (j JoinType) IsSemi() bool {
	return j == JoinTypeLeftSemi || j == JoinTypeRightSemi
}

func (j JoinType) IsAnti() bool {
	return j == JoinTypeLeftAnti || j == JoinTypeRightAnti
}

// NeedsDegree reports whether the rows stored on side s keep a degree.
func (j JoinType) NeedsDegree(s Side) bool {
	switch j {
	case JoinTypeInner:
		return false
	case JoinTypeLeftOuter:
		return s == SideLeft
	case JoinTypeRightOuter:
		return s == SideRight
	default:
		return true
	}
}

// OuterSideKeep reports whether rows of side s appear in the output even when unmatched (padded with NULLs).
func (j JoinType) OuterSideKeep(s Side) bool {
	return (j == JoinTypeLeftOuter && s == SideLeft) || (j == JoinTypeRightOuter && s == SideRight) ||
		j == JoinTypeFullOuter
}

// OuterSideNull reports whether an update on side s can flip a padded row of the opposite side.
func (j JoinType) OuterSideNull(s Side) bool {
	return (j == JoinTypeLeftOuter && s == SideRight) || (j == JoinTypeRightOuter && s == SideLeft) ||
		j == JoinTypeFullOuter
}

// ForwardExactlyOnce reports whether s is the output side of a semi or anti join, whose rows are forwarded
// alone and at most once.
func (j JoinType) ForwardExactlyOnce(s Side) bool {
	return ((j == JoinTypeLeftSemi || j == JoinTypeLeftAnti) && s == SideLeft) ||
		((j == JoinTypeRightSemi || j == JoinTypeRightAnti) && s == SideRight)
}

// OnlyForwardMatchedSide reports whether s is the non-output side of a semi or anti join. Updates on it only
// ever emit rows of the opposite side.
func (j JoinType) OnlyForwardMatchedSide(s Side) bool {
	return ((j == JoinTypeLeftSemi || j == JoinTypeLeftAnti) && s == SideRight) ||
		((j == JoinTypeRightSemi || j == JoinTypeRightAnti) && s == SideLeft)
}

// OutputSide returns the only side whose columns are output for semi and anti joins.
func (j JoinType) OutputSide() (Side, bool) {
	switch j {
	case JoinTypeLeftSemi, JoinTypeLeftAnti:
		return SideLeft, true
	case JoinTypeRightSemi, JoinTypeRightAnti:
		return SideRight, true
	default:
		return 0, false
	}
}
