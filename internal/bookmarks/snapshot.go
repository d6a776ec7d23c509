package bookmarks

import (
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
)

// SnapshotFromDetails builds an unsaved record for the session user from loaded title details.
func SnapshotFromDetails(mediaType MediaType, details catalog.Details, session *users.Session) Record {
	record := Record{
		MediaType:         mediaType,
		ExternalID:        details.ID,
		Title:             details.DisplayTitle(),
		PosterPath:        details.PosterPath,
		BackdropPath:      details.BackdropPath,
		ReleaseOrAirDate:  details.Date(),
		Genres:            details.GenreNames(),
		VoteAverage:       details.VoteAverage,
		ProductionCountry: details.PrimaryCountry(),
		Overview:          details.Overview,
		Runtime:           details.RuntimeMinutes(),
		Status:            details.Status,
	}
	if mediaType == MediaTypeTVShow {
		record.Creator = details.Creator()
	} else {
		record.Director = details.Director()
	}
	if session != nil {
		record.UserID = session.UserID
		record.UserName = session.NameOrAnonymous()
	}
	return record
}
