package naming

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dirmeier/tixparser/internal/domain"
)

// 文件名（去扩展名、规范化后）的两种形态：
//   - 完整：<treatment>-<vendor>-<replicate>_<plate>_<well>[_<feature>]
//   - 简写：<plate>_<well>[_<feature>]，classifier 取自板目录名
//
// well 段这里只做宽松匹配，范围校验交给 domain.ParseWell（这样才能区分 bad_well 与 no_match）。
var (
	fullRE       = regexp.MustCompile(`^([a-z0-9]+)-([a-z0-9]+)-0*([0-9]{1,3})_([a-z0-9][a-z0-9-]*)_([a-z]+[0-9]+)(?:_(.+))?$`)
	shortRE      = regexp.MustCompile(`^([a-z0-9][a-z0-9-]*)_([a-z]+[0-9]+)(?:_(.+))?$`)
	classifierRE = regexp.MustCompile(`^([a-z0-9]+)-([a-z0-9]+)-0*([0-9]{1,3})$`)
)

// Classifier 是 "<treatment>-<vendor>-<replicate>" 三元组。
type Classifier struct {
	Treatment string
	Vendor    string
	Replicate int
}

func (c Classifier) String() string {
	return c.Treatment + "-" + c.Vendor + "-" + strconv.Itoa(c.Replicate)
}

// Coordinates 是从文件名解析出的布局坐标与特征名。
type Coordinates struct {
	Key     domain.LayoutKey
	Feature string
}

type UnmatchedError struct {
	// Kind: domain.ErrCodeNoMatch / ErrCodeNoClassifier / ErrCodeAmbiguous / ErrCodeBadWell
	Kind string
	// Candidates 仅在 ambiguous 时返回（已排序，保证稳定）。
	Candidates []string
	Err        error
}

func (e *UnmatchedError) Error() string {
	switch e.Kind {
	case domain.ErrCodeNoMatch:
		return "无法从文件名解析出 plate/well 坐标"
	case domain.ErrCodeNoClassifier:
		return "文件名与板目录名都不包含 <treatment>-<vendor>-<replicate>"
	case domain.ErrCodeAmbiguous:
		return "文件名与板目录名的 classifier 不一致（ambiguous）：" + strings.Join(e.Candidates, ", ")
	case domain.ErrCodeBadWell:
		if e.Err != nil {
			return "well 不合法：" + e.Err.Error()
		}
		return "well 不合法"
	default:
		return "unmatched"
	}
}

func (e *UnmatchedError) Unwrap() error { return e.Err }

// ParseClassifier 解析目录名或文件名前缀形式的 classifier（如 "adeno-selleck-1"）。
func ParseClassifier(s string) (Classifier, bool) {
	m := classifierRE.FindStringSubmatch(domain.NormalizeToken(s))
	if m == nil {
		return Classifier{}, false
	}
	rep, err := strconv.Atoi(m[3])
	if err != nil || rep < 1 {
		return Classifier{}, false
	}
	return Classifier{Treatment: m[1], Vendor: m[2], Replicate: rep}, true
}

// Extract 从 PlateFile 的文件名与父目录名中解析出唯一坐标。
// 若解析失败，返回 *UnmatchedError。
func Extract(f domain.PlateFile) (Coordinates, error) {
	base := domain.NormalizeToken(f.Base)
	folder, folderOK := ParseClassifier(filepath.Base(filepath.Dir(f.AbsPath)))

	var (
		cls                  Classifier
		plate, well, feature string
	)

	if m := fullRE.FindStringSubmatch(base); m != nil {
		rep, err := strconv.Atoi(m[3])
		if err != nil || rep < 1 {
			return Coordinates{}, &UnmatchedError{Kind: domain.ErrCodeNoMatch}
		}
		cls = Classifier{Treatment: m[1], Vendor: m[2], Replicate: rep}
		plate, well, feature = m[4], m[5], m[6]

		if folderOK && folder != cls {
			cands := []string{cls.String(), folder.String()}
			sort.Strings(cands)
			return Coordinates{}, &UnmatchedError{Kind: domain.ErrCodeAmbiguous, Candidates: cands}
		}
	} else if m := shortRE.FindStringSubmatch(base); m != nil {
		if !folderOK {
			return Coordinates{}, &UnmatchedError{Kind: domain.ErrCodeNoClassifier}
		}
		cls = folder
		plate, well, feature = m[1], m[2], m[3]
	} else {
		return Coordinates{}, &UnmatchedError{Kind: domain.ErrCodeNoMatch}
	}

	k, err := domain.NewLayoutKey(plate, cls.Treatment, cls.Replicate, cls.Vendor, well)
	if err != nil {
		return Coordinates{}, &UnmatchedError{Kind: domain.ErrCodeBadWell, Err: err}
	}
	return Coordinates{Key: k, Feature: feature}, nil
}
