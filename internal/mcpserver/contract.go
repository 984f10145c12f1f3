package mcpserver

// ManifestFormatContract describes the manifest layout for MCP clients that
// read or reason about the patch list.
const ManifestFormatContract = `# Patch Manifest Format

The manifest is a plain-text, numbered patch list. One entry per line.

## Lines

- Active entry: ` + "`" + `<identifier> <filename>` + "`" + `, e.g. ` + "`" + `42 data.rgz` + "`" + `.
  The identifier is a positive integer; the filename is a base name ending in
  ` + "`" + `.rgz` + "`" + ` or ` + "`" + `.gpf` + "`" + `.
- Deactivated entry: the same line prefixed with ` + "`" + `//` + "`" + `, e.g. ` + "`" + `//42 data.rgz` + "`" + `.
  Deactivated lines are history and are never removed or renumbered.
- Blank lines are allowed and kept.

## Sync rules

1. A deleted file has its highest-numbered active entry deactivated.
2. A modified file has its highest-numbered active entry deactivated and is
   appended again with a new identifier.
3. An added file is appended with a new identifier.
4. New identifiers start at the highest active identifier plus one and
   increase by one per appended line: added files first, then modified files.
5. Every other line is left byte-for-byte unchanged.

## Example

Before, with change report ` + "`" + `M\tdata/a.rgz` + "`" + ` and ` + "`" + `A\tdata/c.rgz` + "`" + `:

` + "```" + `
1 a.rgz
2 b.gpf
` + "```" + `

After:

` + "```" + `
//1 a.rgz
2 b.gpf
3 c.rgz
4 a.rgz
` + "```" + `
`
