// Package comorbidity scores encounters with the Charlson comorbidity index.
// Diagnosis codes map to at most one of 17 categories by undotted ICD-9
// prefix (longest prefix wins); categories dedupe within an encounter and
// their weights sum to the score.
package comorbidity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"gopkg.in/yaml.v3"
)

type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Weight   int      `yaml:"weight" json:"weight"`
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

type Catalog struct {
	categories []Category
	byPrefix   map[string]int // prefix -> category index
	lengths    []int          // distinct prefix lengths, descending
}

// Load reads a catalog from a YAML file, or returns the built-in catalog
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("comorbidity catalog empty")
	}
	return build(file.Categories)
}

// Default returns the standard 17-category ICD-9 table.
func Default() *Catalog {
	cat, err := build(defaultCategories())
	if err != nil {
		panic(fmt.Sprintf("built-in comorbidity catalog invalid: %v", err))
	}
	return cat
}

func build(categories []Category) (*Catalog, error) {
	c := &Catalog{
		categories: categories,
		byPrefix:   make(map[string]int),
	}

	lengths := make(map[int]struct{})
	for i, cat := range categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("comorbidity category %d: missing name", i)
		}
		if cat.Weight <= 0 {
			return nil, fmt.Errorf("comorbidity category %q: weight must be positive", cat.Name)
		}
		for _, p := range cat.Prefixes {
			if p == "" {
				return nil, fmt.Errorf("comorbidity category %q: empty prefix", cat.Name)
			}
			if prev, dup := c.byPrefix[p]; dup {
				return nil, fmt.Errorf("comorbidity prefix %q in both %q and %q", p, categories[prev].Name, cat.Name)
			}
			c.byPrefix[p] = i
			lengths[len(p)] = struct{}{}
		}
	}

	for l := range lengths {
		c.lengths = append(c.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(c.lengths)))

	return c, nil
}

// Category resolves one undotted ICD-9 code to its category name and weight.
func (c *Catalog) Category(code string) (string, int, bool) {
	for _, l := range c.lengths {
		if l > len(code) {
			continue
		}
		if i, ok := c.byPrefix[code[:l]]; ok {
			return c.categories[i].Name, c.categories[i].Weight, true
		}
	}
	return "", 0, false
}

// Score computes the Charlson index for one encounter's diagnoses. Non-ICD-9
// codes and codes matching no category contribute nothing; each category
// counts once no matter how many codes hit it.
func (c *Catalog) Score(diagnoses []extractor.Diagnosis) int {
	seen := make(map[int]struct{})
	score := 0
	for _, d := range diagnoses {
		if d.ICDVersion != 9 {
			continue
		}
		for _, l := range c.lengths {
			if l > len(d.Code) {
				continue
			}
			if i, ok := c.byPrefix[d.Code[:l]]; ok {
				if _, counted := seen[i]; !counted {
					seen[i] = struct{}{}
					score += c.categories[i].Weight
				}
				break
			}
		}
	}
	return score
}

// Categories exposes the table, primarily for the run report and tests.
func (c *Catalog) Categories() []Category { return c.categories }

// defaultCategories is the Quan ICD-9-CM coding of the Charlson index,
// undotted, with code ranges expanded to explicit prefixes. The hypertensive
// heart-and-renal codes 40403/40413/40493 sit under renal disease.
func defaultCategories() []Category {
	return []Category{
		{Name: "myocardial_infarction", Weight: 1, Prefixes: []string{"410", "412"}},
		{Name: "congestive_heart_failure", Weight: 1, Prefixes: []string{
			"39891", "40201", "40211", "40291", "40401", "40411", "40491",
			"4254", "4255", "4256", "4257", "4258", "4259", "428",
		}},
		{Name: "peripheral_vascular_disease", Weight: 1, Prefixes: []string{
			"0930", "4373", "440", "441", "4431", "4432", "4433", "4434",
			"4435", "4436", "4437", "4438", "4439", "4471", "5571", "5579", "V434",
		}},
		{Name: "cerebrovascular_disease", Weight: 1, Prefixes: []string{
			"36234", "430", "431", "432", "433", "434", "435", "436", "437", "438",
		}},
		{Name: "dementia", Weight: 1, Prefixes: []string{"290", "2941", "3312"}},
		{Name: "chronic_pulmonary_disease", Weight: 1, Prefixes: []string{
			"4168", "4169", "490", "491", "492", "493", "494", "495", "496",
			"500", "501", "502", "503", "504", "505", "5064", "5081", "5088",
		}},
		{Name: "rheumatic_disease", Weight: 1, Prefixes: []string{
			"4465", "7100", "7101", "7102", "7103", "7104", "7140", "7141", "7142", "7148", "725",
		}},
		{Name: "peptic_ulcer_disease", Weight: 1, Prefixes: []string{"531", "532", "533", "534"}},
		{Name: "mild_liver_disease", Weight: 1, Prefixes: []string{
			"07022", "07023", "07032", "07033", "07044", "07054", "0706", "0709",
			"570", "571", "5733", "5734", "5738", "5739", "V427",
		}},
		{Name: "diabetes_without_complication", Weight: 1, Prefixes: []string{
			"2500", "2501", "2502", "2503", "2508", "2509",
		}},
		{Name: "diabetes_with_complication", Weight: 2, Prefixes: []string{"2504", "2505", "2506", "2507"}},
		{Name: "hemiplegia_paraplegia", Weight: 2, Prefixes: []string{
			"3341", "342", "343", "3440", "3441", "3442", "3443", "3444", "3445", "3446", "3449",
		}},
		{Name: "renal_disease", Weight: 2, Prefixes: []string{
			"40301", "40311", "40391", "40402", "40403", "40412", "40413", "40492", "40493",
			"582", "5830", "5831", "5832", "5833", "5834", "5835", "5836", "5837",
			"585", "586", "5880", "V420", "V451", "V56",
		}},
		{Name: "malignancy", Weight: 2, Prefixes: []string{
			"140", "141", "142", "143", "144", "145", "146", "147", "148", "149",
			"150", "151", "152", "153", "154", "155", "156", "157", "158", "159",
			"160", "161", "162", "163", "164", "165", "166", "167", "168", "169",
			"170", "171", "172",
			"174", "175", "176", "177", "178", "179", "180", "181", "182", "183",
			"184", "185", "186", "187", "188", "189", "190", "191", "192", "193",
			"194", "195",
			"200", "201", "202", "203", "204", "205", "206", "207", "208", "2386",
		}},
		{Name: "moderate_severe_liver_disease", Weight: 3, Prefixes: []string{
			"4560", "4561", "4562", "5722", "5723", "5724", "5725", "5726", "5727", "5728",
		}},
		{Name: "metastatic_solid_tumor", Weight: 6, Prefixes: []string{"196", "197", "198", "199"}},
		{Name: "aids_hiv", Weight: 6, Prefixes: []string{"042", "043", "044"}},
	}
}
