// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies an entry of the issue catalog.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	AuthenticationFailedId
	ModuleNotFoundId
	HeaderProbeFailedId
	ArchiveIOId
	DecodeFailedId
	CompileFailedId
	UnitExecutionFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal markdown using the glamour style at
// stylePath (or a standard style name such as "dark" or "notty").
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(slices.Clone(i.docLinks), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or did not match the schema.

## Search locations (in order of precedence):
1. The file given with ` + "`--config`" + `
2. ` + "`$XDG_CONFIG_HOME/zimp/config.cue`" + `
3. ` + "`./zimp.cue`" + `

## Things you can try:
- Show the effective configuration:
~~~
$ zimp config show
~~~
- Check the field names and value ranges, e.g.:
~~~cue
mode: "compiled"
header_offset: -1
build: {optimize: 1, compression_level: 9}
~~~`,
	}

	authenticationFailedIssue = &Issue{
		id: AuthenticationFailedId,
		mdMsg: `
# Archive entry failed authentication!

An entry could not be decrypted. Either the key is wrong or the archive has
been modified since it was built.

## Things you can try:
- Make sure the loader uses the same key file the archive was built with
- Rebuild the archive:
~~~
$ zimp zip --key-file app.key ./app
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No archive entry matches the module name. A module ` + "`a.b`" + ` is looked up as,
in order: ` + "`a/b`, `a/b.sh`, `a/b.shc`, `a/b/__init__.sh`, `a/b/__init__.shc`" + `.

## Things you can try:
- List the archive contents:
~~~
$ zimp inspect app.zip
~~~
- Check that the top-level name matches the archive name`,
	}

	headerProbeFailedIssue = &Issue{
		id: HeaderProbeFailedId,
		mdMsg: `
# Could not determine the compiled unit header size!

Compiled archives cannot be loaded on this host until the header offset is known.

## Things you can try:
- Run the probe on its own to see the details:
~~~
$ zimp probe --verbose
~~~
- Use a source archive instead (` + "`zimp zip`" + ` without ` + "`--compiled`" + `)`,
	}

	archiveIOIssue = &Issue{
		id: ArchiveIOId,
		mdMsg: `
# Archive could not be read!

The archive is missing, unreadable or not a valid ZIP container.

## Things you can try:
- Check the path and ` + "`archive_dir`" + ` setting
- Rebuild the archive with ` + "`zimp zip`",
	}

	decodeFailedIssue = &Issue{
		id: DecodeFailedId,
		mdMsg: `
# Compiled unit could not be decoded!

The unit does not decode at the configured header offset. The archive may have
been built by a different host version, or the offset is wrong.

## Things you can try:
- Re-probe the offset:
~~~
$ zimp probe
~~~
- Load the archive with ` + "`--header-offset -1`" + ` to probe automatically`,
	}

	compileFailedIssue = &Issue{
		id: CompileFailedId,
		mdMsg: `
# Unit failed to compile!

A unit contains invalid shell syntax. No archive was written.

## Things you can try:
- Fix the reported line and run ` + "`zimp zip`" + ` again`,
	}

	unitExecutionFailedIssue = &Issue{
		id: UnitExecutionFailedId,
		mdMsg: `
# Unit failed while running!

The unit's own code returned an error or a non-zero exit status.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the failing module
- Run the unit directly with a shell to debug it`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		authenticationFailedIssue.Id(): authenticationFailedIssue,
		moduleNotFoundIssue.Id():       moduleNotFoundIssue,
		headerProbeFailedIssue.Id():    headerProbeFailedIssue,
		archiveIOIssue.Id():            archiveIOIssue,
		decodeFailedIssue.Id():         decodeFailedIssue,
		compileFailedIssue.Id():        compileFailedIssue,
		unitExecutionFailedIssue.Id():  unitExecutionFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
