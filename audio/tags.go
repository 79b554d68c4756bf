package audio

import (
	"fmt"
	"strconv"

	id3v2 "github.com/bogem/id3v2/v2"
)

// Publisher is stamped into every produced file's TPUB frame.
const Publisher = "Scrivener Project"

// Metadata is the case information written into an MP3's ID3 frames.
type Metadata struct {
	CaseName       string `json:"case_name"`
	CourtFullName  string `json:"court_full_name"`
	CourtShortName string `json:"court_short_name"`
	DocketNumber   string `json:"docket_number"`
	DownloadURL    string `json:"download_url"`
	DateArguedYear int    `json:"date_argued_year"`
}

// Tag rewrites the ID3v2 tag of the MP3 at path from meta. Existing
// frames are replaced so a re-run converges on the same tag.
func Tag(path string, meta Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(meta.CaseName)
	tag.SetAlbum(meta.CourtFullName)
	tag.SetArtist(meta.CourtShortName)
	if meta.DateArguedYear > 0 {
		tag.AddTextFrame(tag.CommonID("Year"), tag.DefaultEncoding(), strconv.Itoa(meta.DateArguedYear))
	}
	tag.AddTextFrame("TPUB", tag.DefaultEncoding(), Publisher)

	if meta.DocketNumber != "" || meta.DownloadURL != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "docket",
			Text:        meta.DocketNumber + " " + meta.DownloadURL,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}
