package mcpserver

// SearchSyntax describes how the search argument of search_applications is
// interpreted, so LLM callers can build date-range queries.
const SearchSyntax = `# Application Search Syntax

The ` + "`" + `query` + "`" + ` argument is either free text or a date filter on the applied date.

## Free text

Anything that is not a date or a date range is sent to the backend as a text
search over company, job title and description. Example: ` + "`" + `data engineer` + "`" + `.

## Single date

Matches applications applied on that day. Accepted forms:

- ` + "`" + `2024-03-01` + "`" + ` (ISO)
- ` + "`" + `03/01/2024` + "`" + ` (US month/day/year)
- ` + "`" + `Mar 1, 2024` + "`" + `, ` + "`" + `March 1, 2024` + "`" + `, ` + "`" + `1 Mar 2024` + "`" + `, ` + "`" + `2024/03/01` + "`" + `

Years must have four digits. Impossible dates such as ` + "`" + `02/30/2024` + "`" + ` are treated as text.

## Date range

Two dates joined by ` + "`" + `..` + "`" + `, the word ` + "`" + `to` + "`" + ` or a hyphen:

- ` + "`" + `2024-01-01..2024-01-31` + "`" + `
- ` + "`" + `Jan 1, 2024 to Jan 31, 2024` + "`" + `
- ` + "`" + `01/01/2024 - 01/31/2024` + "`" + `

Bounds are inclusive and may be given in either order. Applications without an
applied date never match a date filter.

## Statuses

` + "`" + `applied` + "`" + `, ` + "`" + `interviewing` + "`" + `, ` + "`" + `offer` + "`" + `, ` + "`" + `rejected` + "`" + `. The ` + "`" + `tab` + "`" + ` argument also accepts ` + "`" + `all` + "`" + `.
`
