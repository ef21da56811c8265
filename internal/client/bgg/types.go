package bgg

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Thing is one parsed catalog record. Numeric attributes stay strings: the
// source emits non-numeric sentinels (a rank of "Not Ranked", empty bounds)
// and interpreting them is the query layer's concern, not the transport's.
type Thing struct {
	ID            string
	Type          string
	Name          string
	Description   string
	YearPublished string
	MinPlayers    string
	MaxPlayers    string
	MinPlayTime   string
	MaxPlayTime   string
	MinAge        string
	RatingAverage string
	UsersRated    string
	Rank          string
	Weight        string
	ImageURL      string
	ThumbnailURL  string
	Mechanics     []string
}

type itemsXML struct {
	XMLName xml.Name  `xml:"items"`
	Items   []itemXML `xml:"item"`
}

type itemXML struct {
	ID            string        `xml:"id,attr"`
	Type          string        `xml:"type,attr"`
	Thumbnail     string        `xml:"thumbnail"`
	Image         string        `xml:"image"`
	Names         []nameXML     `xml:"name"`
	Description   string        `xml:"description"`
	YearPublished valueXML      `xml:"yearpublished"`
	MinPlayers    valueXML      `xml:"minplayers"`
	MaxPlayers    valueXML      `xml:"maxplayers"`
	MinPlayTime   valueXML      `xml:"minplaytime"`
	MaxPlayTime   valueXML      `xml:"maxplaytime"`
	MinAge        valueXML      `xml:"minage"`
	Links         []linkXML     `xml:"link"`
	Statistics    statisticsXML `xml:"statistics"`
}

type nameXML struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type valueXML struct {
	Value string `xml:"value,attr"`
}

type linkXML struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type statisticsXML struct {
	Ratings ratingsXML `xml:"ratings"`
}

type ratingsXML struct {
	UsersRated    valueXML  `xml:"usersrated"`
	Average       valueXML  `xml:"average"`
	AverageWeight valueXML  `xml:"averageweight"`
	Ranks         []rankXML `xml:"ranks>rank"`
}

type rankXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func parseThings(body []byte) ([]Thing, error) {
	var payload itemsXML
	if err := xml.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode items payload: %w", err)
	}
	out := make([]Thing, 0, len(payload.Items))
	for _, item := range payload.Items {
		out = append(out, Thing{
			ID:            strings.TrimSpace(item.ID),
			Type:          strings.TrimSpace(item.Type),
			Name:          primaryName(item.Names),
			Description:   strings.TrimSpace(item.Description),
			YearPublished: item.YearPublished.Value,
			MinPlayers:    item.MinPlayers.Value,
			MaxPlayers:    item.MaxPlayers.Value,
			MinPlayTime:   item.MinPlayTime.Value,
			MaxPlayTime:   item.MaxPlayTime.Value,
			MinAge:        item.MinAge.Value,
			RatingAverage: item.Statistics.Ratings.Average.Value,
			UsersRated:    item.Statistics.Ratings.UsersRated.Value,
			Rank:          overallRank(item.Statistics.Ratings.Ranks),
			Weight:        item.Statistics.Ratings.AverageWeight.Value,
			ImageURL:      strings.TrimSpace(item.Image),
			ThumbnailURL:  strings.TrimSpace(item.Thumbnail),
			Mechanics:     mechanicNames(item.Links),
		})
	}
	return out, nil
}

func primaryName(names []nameXML) string {
	for _, name := range names {
		if name.Type == "primary" {
			return strings.TrimSpace(name.Value)
		}
	}
	if len(names) > 0 {
		return strings.TrimSpace(names[0].Value)
	}
	return ""
}

// overallRank picks the cross-category rank. Its value may be the literal
// "Not Ranked", which is preserved as-is.
func overallRank(ranks []rankXML) string {
	for _, rank := range ranks {
		if rank.Name == "boardgame" {
			return rank.Value
		}
	}
	return ""
}

func mechanicNames(links []linkXML) []string {
	var out []string
	for _, link := range links {
		if link.Type != "boardgamemechanic" {
			continue
		}
		if val := strings.TrimSpace(link.Value); val != "" {
			out = append(out, val)
		}
	}
	return out
}
