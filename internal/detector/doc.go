// Package detector locates a document's index page and extracts its numbered
// entries. Detection is anchor-driven: early pages are searched for a header
// hint ("INDEX", "TABLE OF CONTENTS"), then entry lines are parsed from the
// anchor page and any continuation pages that still look like index content.
package detector
