package signal

import (
	"regexp"
	"strconv"
	"strings"
)

// IssueRef points at an issue, possibly in another repository.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

var (
	keywordRef = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s*:?\s+(?:https?://[^\s/]+/((?:[\w.-]+/)*[\w.-]+)/([\w.][\w.-]*)/(?:-/)?issues/|([\w.-]+(?:/[\w.-]+)*)/([\w.-]+)#|#)(\d+)`)
	urlRef     = regexp.MustCompile(`https?://[^\s/]+/((?:[\w.-]+/)*[\w.-]+)/([\w.][\w.-]*)/(?:-/)?issues/(\d+)`)
	bareRef    = regexp.MustCompile(`(?:^|[\s(\[,;])(?:([\w.-]+(?:/[\w.-]+)*)/([\w.-]+))?#(\d+)\b`)
)

// DetectLinkedIssue finds the issue a pull request refers to in its title
// or description. Closing-keyword references win over plain mentions; the
// first match of the winning kind is used. References without a repository
// resolve against owner/repo. Self-references to number are ignored.
func DetectLinkedIssue(title, body, owner, repo string, number int) *IssueRef {
	text := title + "\n" + body

	for _, m := range keywordRef.FindAllStringSubmatch(text, -1) {
		ref := IssueRef{Owner: owner, Repo: repo}
		switch {
		case m[1] != "":
			ref.Owner, ref.Repo = m[1], m[2]
		case m[3] != "":
			ref.Owner, ref.Repo = m[3], m[4]
		}
		if r, ok := finish(ref, m[5], owner, repo, number); ok {
			return r
		}
	}

	// Plain mentions: earliest position across URL and #N forms.
	type candidate struct {
		pos int
		ref IssueRef
		num string
	}
	var best *candidate
	consider := func(c candidate) {
		if best == nil || c.pos < best.pos {
			best = &c
		}
	}
	for _, idx := range urlRef.FindAllStringSubmatchIndex(text, -1) {
		ref := IssueRef{Owner: text[idx[2]:idx[3]], Repo: text[idx[4]:idx[5]]}
		num := text[idx[6]:idx[7]]
		if _, ok := finish(ref, num, owner, repo, number); ok {
			consider(candidate{pos: idx[0], ref: ref, num: num})
			break
		}
	}
	for _, idx := range bareRef.FindAllStringSubmatchIndex(text, -1) {
		ref := IssueRef{Owner: owner, Repo: repo}
		if idx[2] >= 0 {
			ref.Owner, ref.Repo = text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		}
		num := text[idx[6]:idx[7]]
		if _, ok := finish(ref, num, owner, repo, number); ok {
			consider(candidate{pos: idx[0], ref: ref, num: num})
			break
		}
	}
	if best == nil {
		return nil
	}
	r, _ := finish(best.ref, best.num, owner, repo, number)
	return r
}

func finish(ref IssueRef, num, owner, repo string, self int) (*IssueRef, bool) {
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return nil, false
	}
	ref.Number = n
	if n == self && strings.EqualFold(ref.Owner, owner) && strings.EqualFold(ref.Repo, repo) {
		return nil, false
	}
	return &ref, true
}
