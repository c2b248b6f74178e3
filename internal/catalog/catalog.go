package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskDescription is the crew scheduling brief printed at the top of both documents.
//
//go:embed task_description.md
var TaskDescription string

// ErrInvalidDefinition is returned when a report definition cannot be rendered.
var ErrInvalidDefinition = errors.New("invalid report definition")

const (
	// FormatText prints values as returned by the driver.
	FormatText = ""
	// FormatHours prints a number with exactly two decimals.
	FormatHours = "hours"
	// FormatTimestamp prints times as YYYY-MM-DD HH:MM:SS.
	FormatTimestamp = "timestamp"
)

// Column is one table column of a report.
type Column struct {
	Header string  `yaml:"header" json:"header"`
	Width  float64 `yaml:"width" json:"width"`
	Format string  `yaml:"format,omitempty" json:"format,omitempty"`
}

// Definition describes one query-backed report.
type Definition struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Empty       string   `yaml:"empty"`
	Query       string   `yaml:"query"`
	Params      []string `yaml:"params"`
	Columns     []Column `yaml:"columns"`
}

// Headers returns the column headers in order.
func (d Definition) Headers() []string {
	out := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, c.Header)
	}
	return out
}

// Widths returns the column widths in millimetres.
func (d Definition) Widths() []float64 {
	out := make([]float64, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, c.Width)
	}
	return out
}

// ResolveTitle substitutes {name} placeholders with parameter values.
func (d Definition) ResolveTitle(params map[string]any) string {
	title := d.Title
	for name, v := range params {
		title = strings.ReplaceAll(title, "{"+name+"}", fmt.Sprint(v))
	}
	return title
}

// Validate checks that every definition can be rendered and that ids are unique.
func Validate(defs []Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: no reports defined", ErrInvalidDefinition)
	}
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		label := d.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		switch {
		case d.ID == "":
			return fmt.Errorf("%w %s: id is required", ErrInvalidDefinition, label)
		case strings.TrimSpace(d.Title) == "":
			return fmt.Errorf("%w %s: title is required", ErrInvalidDefinition, label)
		case strings.TrimSpace(d.Query) == "":
			return fmt.Errorf("%w %s: query is required", ErrInvalidDefinition, label)
		case len(d.Columns) == 0:
			return fmt.Errorf("%w %s: at least one column is required", ErrInvalidDefinition, label)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w %s: duplicate id", ErrInvalidDefinition, label)
		}
		seen[d.ID] = struct{}{}

		for j, c := range d.Columns {
			if strings.TrimSpace(c.Header) == "" {
				return fmt.Errorf("%w %s: column %d has no header", ErrInvalidDefinition, label, j+1)
			}
			if c.Width < 0 {
				return fmt.Errorf("%w %s: column %q has a negative width", ErrInvalidDefinition, label, c.Header)
			}
			switch c.Format {
			case FormatText, FormatHours, FormatTimestamp:
			default:
				return fmt.Errorf("%w %s: column %q has unknown format %q", ErrInvalidDefinition, label, c.Header, c.Format)
			}
		}
	}
	return nil
}

type file struct {
	Reports []Definition `yaml:"reports"`
}

// Load reads report definitions from a YAML file. Columns without a width
// share the page evenly at render time.
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reports %q: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse reports %q: %w", path, err)
	}
	if err := Validate(f.Reports); err != nil {
		return nil, fmt.Errorf("reports %q: %w", path, err)
	}
	return f.Reports, nil
}

// Builtin returns the four crew scheduling reports, written for SQL Server.
func Builtin() []Definition {
	return []Definition{
		{
			ID:          "crew-in-flight",
			Title:       "Report 1: Crew currently in flight",
			Description: "This report shows all crew members currently on planes in flight, including their flight details and roles.",
			Empty:       "No crew currently in flight.",
			Query: `SELECT ca.CrewID, c.FirstName, c.LastName, f.FlightID, f.FlightNumber,
       dep.City AS DepartureCity, dest.City AS DestinationCity,
       f.ActualDeparture AS DepartureTime,
       DATEADD(MINUTE, f.FlightDuration, f.ActualDeparture) AS ArrivalTime,
       r.RoleName AS Role, sl.SeniorityName AS Seniority
FROM CrewAssignments ca
JOIN Crew c ON ca.CrewID = c.CrewID
JOIN Flights f ON ca.FlightID = f.FlightID
JOIN Airports dep ON f.DepartureAirportID = dep.AirportID
JOIN Airports dest ON f.DestinationAirportID = dest.AirportID
JOIN Roles r ON ca.RoleID = r.RoleID
JOIN SeniorityLevels sl ON c.SeniorityID = sl.SeniorityID
WHERE f.StatusID = 2
ORDER BY f.FlightID, ca.RoleID DESC, c.LastName`,
			Columns: []Column{
				{Header: "Crew", Width: 12},
				{Header: "First Name", Width: 17},
				{Header: "Last Name", Width: 17},
				{Header: "Flight", Width: 12},
				{Header: "Flight Number", Width: 17},
				{Header: "Departure City", Width: 22},
				{Header: "Destination City", Width: 22},
				{Header: "Departure Time", Width: 27, Format: FormatTimestamp},
				{Header: "Arrival Time", Width: 27, Format: FormatTimestamp},
				{Header: "Role", Width: 17},
				{Header: "Seniority", Width: 12},
			},
		},
		{
			ID:          "hour-limits",
			Title:       "Report 2: Crew exceeding hour limits",
			Description: "This report lists crew members who have exceeded or are at risk of exceeding their work hour limitations as per regulatory requirements.",
			Empty:       "No crew exceeding hour limits.",
			Query: `SELECT c.CrewID, c.FirstName, c.LastName,
       HL.Hours168, HL.Hours672, HL.Hours365Days,
       HL.LimitStatus AS WithinLimits,
       sl.SeniorityName AS Seniority
FROM Crew c
CROSS APPLY dbo.fn_CheckHourLimits(c.CrewID) HL
JOIN SeniorityLevels sl ON c.SeniorityID = sl.SeniorityID
WHERE HL.ExceedsLimits = 1
ORDER BY c.CrewID`,
			Columns: []Column{
				{Header: "Crew", Width: 12},
				{Header: "First Name", Width: 17},
				{Header: "Last Name", Width: 17},
				{Header: "Hours 168h", Width: 17},
				{Header: "Hours 672h", Width: 17},
				{Header: "Hours 365d", Width: 17},
				{Header: "Limit Status", Width: 22},
				{Header: "Seniority", Width: 12},
			},
		},
		{
			ID:          "monthly-hours",
			Title:       "Report 3: Monthly hours worked by crew",
			Description: "This report provides a summary of hours worked per month by each crew member to support payroll processing.",
			Empty:       "No monthly hours data.",
			Query: `SELECT c.CrewID, c.FirstName, c.LastName,
       YEAR(f.ScheduledDeparture) AS Year,
       MONTH(f.ScheduledDeparture) AS Month,
       SUM(f.FlightDuration / 60.0) AS MonthlyHours,
       sl.SeniorityName AS Seniority
FROM CrewAssignments ca
JOIN Crew c ON ca.CrewID = c.CrewID
JOIN Flights f ON ca.FlightID = f.FlightID
JOIN SeniorityLevels sl ON c.SeniorityID = sl.SeniorityID
WHERE f.StatusID = 3
GROUP BY c.CrewID, c.FirstName, c.LastName, YEAR(f.ScheduledDeparture), MONTH(f.ScheduledDeparture), sl.SeniorityName
ORDER BY c.CrewID, Year, Month`,
			Columns: []Column{
				{Header: "Crew", Width: 12},
				{Header: "First Name", Width: 17},
				{Header: "Last Name", Width: 17},
				{Header: "Year", Width: 12},
				{Header: "Month", Width: 12},
				{Header: "Monthly Hours", Width: 17, Format: FormatHours},
				{Header: "Seniority", Width: 12},
			},
		},
		{
			ID:          "schedule-crew",
			Title:       "Report 4: Schedule crew for flight (FlightID: {flight_id})",
			Description: "This report suggests available crew members for scheduling on a specific flight, prioritizing those with the most rest time.",
			Empty:       "No available crew found.",
			Query: `SELECT TOP 5 c.CrewID, c.FirstName, c.LastName, a.City AS BaseCity,
       ct.CrewTypeName AS CrewType,
       dbo.fn_CalculateRestTime(c.CrewID, @p1) AS RestTimeHours,
       sl.SeniorityName AS Seniority
FROM Crew c
JOIN Airports a ON c.BaseAirportID = a.AirportID
JOIN SeniorityLevels sl ON c.SeniorityID = sl.SeniorityID
JOIN CrewTypes ct ON c.CrewTypeID = ct.CrewTypeID
WHERE c.IsActive = 1
AND NOT EXISTS (SELECT 1 FROM dbo.fn_CheckHourLimits(c.CrewID) WHERE ExceedsLimits = 1)
AND c.BaseAirportID = (SELECT DepartureAirportID FROM Flights WHERE FlightID = @p1)
ORDER BY RestTimeHours DESC`,
			Params: []string{"flight_id"},
			Columns: []Column{
				{Header: "Crew", Width: 12},
				{Header: "First Name", Width: 17},
				{Header: "Last Name", Width: 17},
				{Header: "Base City", Width: 22},
				{Header: "Crew Type", Width: 15},
				{Header: "Rest Time Hours", Width: 17},
				{Header: "Seniority", Width: 12},
			},
		},
	}
}
