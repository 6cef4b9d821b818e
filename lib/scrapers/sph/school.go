package sph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const DefaultSchoolListUrl = "https://startcache.schulportal.hessen.de/exporteur.php?a=schoollist"

// school ids come back as numbers on some exports and strings on others
type schoolId string

func (s *schoolId) UnmarshalJSON(data []byte) error {
	*s = schoolId(strings.Trim(string(data), `"`))
	return nil
}

type schoolListArea struct {
	Schulen []struct {
		Id   schoolId `json:"Id"`
		Name string   `json:"Name"`
		Ort  string   `json:"Ort"`
	} `json:"Schulen"`
}

// SchoolDirectory resolves a school id from the public school list when
// the config names the school by city and name instead of id.
type SchoolDirectory struct {
	http    *resty.Client
	listUrl string
}

func NewSchoolDirectory(listUrl string) *SchoolDirectory {
	if listUrl == "" {
		listUrl = DefaultSchoolListUrl
	}
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)
	restyInstrument(client)

	return &SchoolDirectory{http: client, listUrl: listUrl}
}

func (d *SchoolDirectory) ResolveId(ctx context.Context, city, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "schooldirectory:ResolveId")
	defer span.End()

	res, err := d.http.R().
		SetContext(ctx).
		Get(d.listUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch school list")
		return "", fmt.Errorf("failed to fetch school list: %w", err)
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "failed to fetch school list")
		return "", fmt.Errorf("failed to fetch school list: status %d", res.StatusCode())
	}

	var areas []schoolListArea
	err = json.Unmarshal(res.Body(), &areas)
	if err != nil {
		span.SetStatus(codes.Error, "failed to unmarshal school list")
		return "", err
	}

	for _, area := range areas {
		for _, school := range area.Schulen {
			if strings.Contains(school.Name, name) && strings.Contains(school.Ort, city) {
				return string(school.Id), nil
			}
		}
	}

	span.SetStatus(codes.Error, "school not found")
	return "", fmt.Errorf("could not find id for school %q in %q", name, city)
}
