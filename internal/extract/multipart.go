package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var rarPartPattern = regexp.MustCompile(`(?i)^(.*)\.part(\d+)\.rar$`)

// ArchiveGroup is one archive to process: Primary is the file Extract is
// called on; Parts is Primary plus any secondary multi-part volumes, all of
// which get deleted together once extraction succeeds (spec §4.7 points 1
// and 6).
type ArchiveGroup struct {
	Primary string
	Parts   []string
}

// GroupArchives partitions names into ArchiveGroups, collapsing
// "name.partNN.rar" siblings into one group keyed by their lowest-numbered
// (first) volume. A group whose first volume is missing returns
// ErrMissingPart. Groups are returned in Primary-sorted order.
func GroupArchives(names []string) ([]ArchiveGroup, error) {
	type part struct {
		num  int
		name string
	}
	multipart := map[string][]part{}
	var singles []string

	for _, name := range names {
		m := rarPartPattern.FindStringSubmatch(name)
		if m == nil {
			singles = append(singles, name)
			continue
		}
		num, err := strconv.Atoi(m[2])
		if err != nil {
			singles = append(singles, name)
			continue
		}
		multipart[m[1]] = append(multipart[m[1]], part{num: num, name: name})
	}

	var groups []ArchiveGroup
	for base, parts := range multipart {
		sort.Slice(parts, func(i, j int) bool { return parts[i].num < parts[j].num })
		if parts[0].num != 1 {
			return nil, fmt.Errorf("%w: %s", ErrMissingPart, base)
		}
		names := make([]string, len(parts))
		for i, p := range parts {
			names[i] = p.name
		}
		groups = append(groups, ArchiveGroup{Primary: parts[0].name, Parts: names})
	}
	for _, name := range singles {
		groups = append(groups, ArchiveGroup{Primary: name, Parts: []string{name}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Primary < groups[j].Primary })
	return groups, nil
}
