package graphics

import (
	"bytes"
	"encoding/base64"
	"strconv"
)

// command is one parsed graphics command.
type command struct {
	// The raw key-value section, kept for error messages.
	raw string
	// The base64 section after ';'.
	payload []byte

	// 'a=': 't' transmit, 'T' transmit+put, 'p' put, 'q' query, 'd' delete.
	action byte
	// 'q=': 1 suppresses OK, 2 suppresses errors too.
	quiet int
	// 'f=': 0 autodetect, 24 RGB, 32 RGBA, 100 image-file format.
	format int
	// 'o=': only 'z' (zlib) is accepted.
	compression byte
	// 't=': 'd' direct, 'f' file, 't' temporary file.
	medium byte
	// 'd=': delete specifier, case-sensitive.
	deleteSpec byte
	// 's=', 'v=': pixel dimensions for raw formats.
	pixWidth, pixHeight int
	// 'x=', 'y=', 'w=', 'h=': source rectangle in pixels.
	srcX, srcY, srcW, srcH int
	// 'c=', 'r=': placement size in cells, 0 means infer.
	cols, rows int
	// 'i=', 'I=', 'p='.
	imageID     uint32
	imageNumber uint32
	placementID uint32
	// 'm=': 1 while more chunks follow.
	more int
	// Set when 'm=' was present at all.
	isDataTransmission bool
	// Set by the transmit handler when the command turned out to append
	// to an upload already in progress.
	isDirectContinuation bool
	// 'S=': expected total size of the uploaded data.
	size int64
	// 'U=': virtual placement for Unicode placeholders.
	virtual bool
	// 'C=': do not move the cursor after a put.
	doNotMoveCursor bool
}

// parseCommand tokenizes the body of a graphics command (everything after
// the leading 'G'). Parse errors are reported through the result and leave
// the error flag set.
func (e *Engine) parseCommand(body []byte) *command {
	cmd := &command{raw: string(body)}

	kvSection := body
	if idx := bytes.IndexByte(body, ';'); idx >= 0 {
		kvSection = body[:idx]
		cmd.payload = body[idx+1:]
	}

	for _, pair := range bytes.Split(kvSection, []byte{','}) {
		key, value, found := bytes.Cut(pair, []byte{'='})
		if !found || len(value) == 0 {
			e.reportErrorCmd(cmd, "EINVAL: key without value: %s", pair)
			continue
		}
		e.setKeyValue(cmd, key, value)
	}
	return cmd
}

// setKeyValue validates and assigns one key=value pair.
func (e *Engine) setKeyValue(cmd *command, key, value []byte) {
	if len(key) != 1 {
		e.reportErrorCmd(cmd, "EINVAL: unknown key of length %d: %s", len(key), key)
		return
	}
	k := key[0]

	var num int64
	if k == 'a' || k == 't' || k == 'd' || k == 'o' {
		// These keys take one-character values.
		if len(value) != 1 {
			e.reportErrorCmd(cmd,
				"EINVAL: value of 'a', 't', 'd' or 'o' must be a single char: %c", k)
			return
		}
	} else {
		var err error
		num, err = strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			e.reportErrorCmd(cmd, "EINVAL: could not parse number value: %c", k)
			return
		}
	}

	switch k {
	case 'a':
		cmd.action = value[0]
	case 't':
		cmd.medium = value[0]
	case 'd':
		cmd.deleteSpec = value[0]
	case 'o':
		cmd.compression = value[0]
		if cmd.compression != 'z' {
			e.reportErrorCmd(cmd, "EINVAL: unsupported compression specification: %c", k)
		}
	case 'q':
		cmd.quiet = int(num)
	case 'f':
		cmd.format = int(num)
		if num != 0 && num != 24 && num != 32 && num != 100 {
			e.reportErrorCmd(cmd, "EINVAL: unsupported format specification: %c", k)
		}
	case 's':
		cmd.pixWidth = int(num)
	case 'v':
		cmd.pixHeight = int(num)
	case 'x':
		cmd.srcX = int(num)
	case 'y':
		cmd.srcY = int(num)
	case 'w':
		cmd.srcW = int(num)
	case 'h':
		cmd.srcH = int(num)
	case 'i':
		cmd.imageID = uint32(num)
	case 'I':
		cmd.imageNumber = uint32(num)
	case 'p':
		cmd.placementID = uint32(num)
	case 'c':
		cmd.cols = int(num)
	case 'r':
		cmd.rows = int(num)
	case 'm':
		cmd.isDataTransmission = true
		cmd.more = int(num)
	case 'S':
		cmd.size = num
	case 'U':
		cmd.virtual = num != 0
	case 'C':
		cmd.doNotMoveCursor = num != 0
	case 'X', 'Y', 'z':
		e.log.Warnf("the key '%c' is not supported and will be ignored", k)
	default:
		e.reportErrorCmd(cmd, "EINVAL: unsupported key: %c", k)
	}
}

// base64Alphabet reports whether b belongs to the standard base64 alphabet.
func base64Alphabet(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '+' || b == '/':
		return true
	}
	return false
}

// decodeBase64 decodes a payload the way terminals must: junk bytes are
// skipped, decoding stops at the first padding character, and a truncated
// tail is tolerated rather than rejected.
func decodeBase64(src []byte) []byte {
	cleaned := make([]byte, 0, len(src))
	for _, b := range src {
		if base64Alphabet(b) {
			cleaned = append(cleaned, b)
			continue
		}
		if b == '=' {
			break
		}
	}
	if len(cleaned)%4 == 1 {
		cleaned = cleaned[:len(cleaned)-1]
	}
	data, err := base64.RawStdEncoding.DecodeString(string(cleaned))
	if err != nil {
		return nil
	}
	return data
}
