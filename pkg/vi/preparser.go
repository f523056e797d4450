package vi

import "strings"

// StripComments removes `# line` and `<# block #>` comments from src.
//
// A block comment is treated as whitespace, so code following `#>` joins the
// line the comment opened on. The returned line map has one entry per output
// line: lineMap[i] is the original 1-based line of output line i+1.
// Comment markers inside string literals are left alone. An unterminated
// block comment runs to the end of the input.
func StripComments(src string) (string, []int) {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	lineMap := make([]int, 0, len(lines))

	var cur strings.Builder
	curStart := 0
	inBlock := false

	for i, line := range lines {
		if !inBlock {
			cur.Reset()
			curStart = i + 1
		}
		var quote byte
		for j := 0; j < len(line); j++ {
			c := line[j]
			if inBlock {
				if c == '#' && j+1 < len(line) && line[j+1] == '>' {
					inBlock = false
					j++
				}
				continue
			}
			if quote != 0 {
				cur.WriteByte(c)
				if c == '\\' && j+1 < len(line) {
					j++
					cur.WriteByte(line[j])
				} else if c == quote {
					quote = 0
				}
				continue
			}
			switch {
			case c == '"' || c == '\'':
				quote = c
				cur.WriteByte(c)
			case c == '<' && j+1 < len(line) && line[j+1] == '#':
				inBlock = true
				j++
			case c == '#':
				j = len(line)
			default:
				cur.WriteByte(c)
			}
		}
		if inBlock {
			continue
		}
		out = append(out, strings.TrimRight(cur.String(), " \t\r"))
		lineMap = append(lineMap, curStart)
	}
	if inBlock {
		out = append(out, strings.TrimRight(cur.String(), " \t\r"))
		lineMap = append(lineMap, curStart)
	}
	return strings.Join(out, "\n"), lineMap
}
