package main

import "sort"

// diffColumns splits source and target column sets into matching,
// source-only and target-only names. Matching keeps the order of
// sourceOrder (source declaration order); the difference sets are sorted.
func diffColumns(sourceOrder, targetCols []string) ColumnDiff {
	target := toSet(targetCols)
	source := toSet(sourceOrder)

	var diff ColumnDiff
	for _, name := range sourceOrder {
		if _, ok := target[name]; ok {
			diff.Matching = append(diff.Matching, name)
		} else {
			diff.SourceOnly = append(diff.SourceOnly, name)
		}
	}
	for _, name := range targetCols {
		if _, ok := source[name]; !ok {
			diff.TargetOnly = append(diff.TargetOnly, name)
		}
	}
	sort.Strings(diff.SourceOnly)
	sort.Strings(diff.TargetOnly)
	return diff
}

// diffTables splits two table-name sets into the sorted intersection and
// the two sorted differences. Only the intersection is migrated.
func diffTables(sourceTables, targetTables []string) (common, sourceOnly, targetOnly []string) {
	target := toSet(targetTables)
	source := toSet(sourceTables)

	for _, name := range sourceTables {
		if _, ok := target[name]; ok {
			common = append(common, name)
		} else {
			sourceOnly = append(sourceOnly, name)
		}
	}
	for _, name := range targetTables {
		if _, ok := source[name]; !ok {
			targetOnly = append(targetOnly, name)
		}
	}
	sort.Strings(common)
	sort.Strings(sourceOnly)
	sort.Strings(targetOnly)
	return common, sourceOnly, targetOnly
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
