// Package generator produces synthetic signup records and reads and writes
// the test-data files that hold them.
package generator

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

var (
	FirstNames = []string{
		"Alex", "Taylor", "Jordan", "Morgan", "Casey", "Riley", "Dakota", "Quinn",
		"Avery", "Charlie", "Sam", "Jamie", "Pat", "Drew", "Cameron", "Jesse",
	}
	LastNames = []string{
		"Smith", "Johnson", "Williams", "Jones", "Brown", "Davis", "Miller", "Wilson",
		"Taylor", "Clark", "Walker", "Hall", "Young", "Allen", "King", "Wright",
		"Lee", "Scott", "Baker", "Gonzalez", "Nelson", "Carter", "Mitchell", "Perez",
		"Garcia", "Rodriguez", "Lopez", "Martinez", "Hernandez", "Moore", "Martin",
	}
	Domains = []string{
		"example.com", "test.org", "sample.net", "demo.io", "verify.co", "trial.dev",
	}
	Companies = []string{
		"TechCorp", "DataSystems", "InfoTech", "CloudWorks", "ByteLogic", "CodeNest",
		"SynthLogic", "NetMatrix", "DataFlow", "InfoSystems", "TechNexus", "ByteWave",
		"Quantum Data", "Matrix Systems", "Logic Stream", "InfoFusion", "SynthData",
	}
	JobTitles = []string{
		"Data Engineer", "System Administrator", "Cloud Architect", "DevOps Engineer",
		"Database Administrator", "Data Scientist", "Software Engineer", "IT Manager",
		"Business Analyst", "Data Analyst", "Solutions Architect", "IT Specialist",
	}
)

// Generate returns count records drawn from the name pools. Cloud provider
// and edition are left empty so the usual defaults apply. A non-positive
// count yields no records.
func Generate(rng *rand.Rand, count int) []schemas.SignupRecord {
	if count <= 0 {
		return []schemas.SignupRecord{}
	}
	out := make([]schemas.SignupRecord, 0, count)
	for range count {
		first := pick(rng, FirstNames)
		last := pick(rng, LastNames)
		out = append(out, schemas.SignupRecord{
			FirstName: first,
			LastName:  last,
			Email:     RandomEmail(rng, first, last),
			Company:   pick(rng, Companies),
			JobTitle:  pick(rng, JobTitles),
		})
	}
	return out
}

// RandomEmail builds a lower-case address in one of three shapes:
// first<n>@domain, first.last@domain or <initial>last@domain.
func RandomEmail(rng *rand.Rand, first, last string) string {
	first, last = strings.ToLower(first), strings.ToLower(last)
	domain := pick(rng, Domains)
	switch rng.IntN(3) {
	case 0:
		return fmt.Sprintf("%s%d@%s", first, rng.IntN(999)+1, domain)
	case 1:
		return fmt.Sprintf("%s.%s@%s", first, last, domain)
	default:
		initial := first
		if first != "" {
			initial = first[:1]
		}
		return fmt.Sprintf("%s%s@%s", initial, last, domain)
	}
}

// DemoRecord is the fallback used by the demo command when no test data can
// be loaded.
func DemoRecord(rng *rand.Rand) schemas.SignupRecord {
	return schemas.SignupRecord{
		FirstName: "Demo",
		LastName:  "User",
		Email:     fmt.Sprintf("demo%d@example.com", 100+rng.IntN(900)),
		Company:   "Demo Company",
		JobTitle:  "Test Engineer",
	}
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}
