package catalog

import "math"

// ProductSpec describes one retrievable imagery product. StartDate is the
// product's earliest availability; Resolution its nominal ground
// resolution in meters, used to approximate AOI pixel counts.
type ProductSpec struct {
	ID          int
	Name        string
	Sensor      string
	Description string
	StartDate   string
	Resolution  float64
	// Bands maps spectral region keys to the product's band names.
	Bands map[string]string
}

// ProcAlgoSpec describes a pixel-selection / processing algorithm. The
// algorithm itself runs inside the provider; only MaxSimImages matters to
// the scheduler.
type ProcAlgoSpec struct {
	ID           int
	Name         string
	Description  string
	Ref          string
	MaxSimImages int
}

// EstimAlgoSpec describes a parameter-estimation algorithm. During
// retrieval the id is passed through to the provider opaquely; Eval is
// used only by estimation-only runs, applied to stored band values keyed
// by spectral region.
type EstimAlgoSpec struct {
	ID            int
	Name          string
	Description   string
	Model         string
	Ref           string
	ParamName     string
	RequiredBands []string
	Eval          func(bands map[string]float64) float64
}

// ReducerSpec describes a statistical reducer and the statistic suffixes
// the provider appends to band names under it.
type ReducerSpec struct {
	ID          int
	Description string
	Suffixes    []string
}

// Products is the closed set of supported products.
var Products = map[int]ProductSpec{
	101: {
		ID: 101, Name: "MOD09GA", Sensor: "Terra/MODIS",
		Description: "Daily surface reflectance, 500 m",
		StartDate:   "2000-02-24", Resolution: 500,
		Bands: map[string]string{"blue": "sur_refl_b03", "green": "sur_refl_b04", "red": "sur_refl_b01", "nir": "sur_refl_b02"},
	},
	102: {
		ID: 102, Name: "MYD09GA", Sensor: "Aqua/MODIS",
		Description: "Daily surface reflectance, 500 m",
		StartDate:   "2002-07-04", Resolution: 500,
		Bands: map[string]string{"blue": "sur_refl_b03", "green": "sur_refl_b04", "red": "sur_refl_b01", "nir": "sur_refl_b02"},
	},
	103: {
		ID: 103, Name: "MOD09GQ", Sensor: "Terra/MODIS",
		Description: "Daily surface reflectance, 250 m",
		StartDate:   "2000-02-24", Resolution: 250,
		Bands: map[string]string{"red": "sur_refl_b01", "nir": "sur_refl_b02"},
	},
	104: {
		ID: 104, Name: "MYD09GQ", Sensor: "Aqua/MODIS",
		Description: "Daily surface reflectance, 250 m",
		StartDate:   "2002-07-04", Resolution: 250,
		Bands: map[string]string{"red": "sur_refl_b01", "nir": "sur_refl_b02"},
	},
	151: {
		ID: 151, Name: "S2_SR", Sensor: "Sentinel-2/MSI",
		Description: "Level-2A surface reflectance, 20 m",
		StartDate:   "2017-03-28", Resolution: 20,
		Bands: map[string]string{"blue": "B2", "green": "B3", "red": "B4", "nir": "B8"},
	},
	201: {
		ID: 201, Name: "S3_OLCI", Sensor: "Sentinel-3/OLCI",
		Description: "Top-of-atmosphere radiance, 300 m",
		StartDate:   "2016-10-18", Resolution: 300,
		Bands: map[string]string{"blue": "Oa04_radiance", "green": "Oa06_radiance", "red": "Oa08_radiance", "nir": "Oa17_radiance"},
	},
	301: {
		ID: 301, Name: "LT05_SR", Sensor: "Landsat-5/TM",
		Description: "Collection 2 surface reflectance, 30 m",
		StartDate:   "1984-03-16", Resolution: 30,
		Bands: map[string]string{"blue": "SR_B1", "green": "SR_B2", "red": "SR_B3", "nir": "SR_B4"},
	},
	302: {
		ID: 302, Name: "LE07_SR", Sensor: "Landsat-7/ETM+",
		Description: "Collection 2 surface reflectance, 30 m",
		StartDate:   "1999-05-28", Resolution: 30,
		Bands: map[string]string{"blue": "SR_B1", "green": "SR_B2", "red": "SR_B3", "nir": "SR_B4"},
	},
	303: {
		ID: 303, Name: "LC08_SR", Sensor: "Landsat-8/OLI",
		Description: "Collection 2 surface reflectance, 30 m",
		StartDate:   "2013-03-18", Resolution: 30,
		Bands: map[string]string{"blue": "SR_B2", "green": "SR_B3", "red": "SR_B4", "nir": "SR_B5"},
	},
}

// ProcAlgos is the closed set of processing algorithms.
var ProcAlgos = map[int]ProcAlgoSpec{
	0: {ID: 0, Name: "none", Description: "No pixel selection", Ref: "", MaxSimImages: 500},
	1: {ID: 1, Name: "cloudMask", Description: "QA-based cloud and shadow masking", Ref: "product QA bands", MaxSimImages: 200},
	2: {ID: 2, Name: "waterMask", Description: "Cloud masking plus NDWI water selection", Ref: "McFeeters (1996)", MaxSimImages: 100},
	9: {ID: 9, Name: "S2WP", Description: "Sentinel-2 water pixel selection", Ref: "Sentinel-2 L2A scene classification", MaxSimImages: 40},
	10: {ID: 10, Name: "minGlint", Description: "Water selection with sun-glint minimization", Ref: "Kutser et al. (2009)", MaxSimImages: 40},
}

// EstimAlgos is the closed set of estimation algorithms. ID 0 yields no
// derived variable.
var EstimAlgos = map[int]EstimAlgoSpec{
	0: {ID: 0, Name: "none", Description: "No parameter estimation", Model: "", Ref: "", ParamName: ""},
	1: {
		ID: 1, Name: "SPM Nechad", Description: "Suspended particulate matter from red reflectance",
		Model: "A*p/(1-p/C)", Ref: "Nechad et al. (2010)",
		ParamName: "spm", RequiredBands: []string{"red"},
		Eval: func(b map[string]float64) float64 {
			p := b["red"] / 10000
			return 355.85 * p / (1 - p/0.1728)
		},
	},
	2: {
		ID: 2, Name: "Chla OC2", Description: "Chlorophyll-a from a blue/green band ratio",
		Model: "10^(a0+a1*X+a2*X^2+a3*X^3+a4*X^4)", Ref: "O'Reilly et al. (1998)",
		ParamName: "chla", RequiredBands: []string{"blue", "green"},
		Eval: func(b map[string]float64) float64 {
			x := math.Log10(b["blue"] / b["green"])
			return math.Pow(10, 0.2389-1.9369*x+1.7627*x*x-3.0777*x*x*x-0.1054*x*x*x*x)
		},
	},
	3: {
		ID: 3, Name: "Turb Dogliotti", Description: "Turbidity from red reflectance",
		Model: "A*p/(1-p/C)", Ref: "Dogliotti et al. (2015)",
		ParamName: "turb", RequiredBands: []string{"red"},
		Eval: func(b map[string]float64) float64 {
			p := b["red"] / 10000
			return 228.1 * p / (1 - p/0.1641)
		},
	},
}

// Reducers is the closed set of statistical reducers, indexed 0..7.
var Reducers = map[int]ReducerSpec{
	0: {ID: 0, Description: "none", Suffixes: nil},
	1: {ID: 1, Description: "median", Suffixes: []string{"median"}},
	2: {ID: 2, Description: "mean", Suffixes: []string{"mean"}},
	3: {ID: 3, Description: "mean & stdDev", Suffixes: []string{"mean", "stdDev"}},
	4: {ID: 4, Description: "min & max", Suffixes: []string{"min", "max"}},
	5: {ID: 5, Description: "count", Suffixes: []string{"count"}},
	6: {ID: 6, Description: "sum", Suffixes: []string{"sum"}},
	7: {ID: 7, Description: "median, mean, stdDev, min & max", Suffixes: []string{"median", "mean", "stdDev", "min", "max"}},
}

// statisticSuffixes are the band-name suffixes recognized as statistics.
var statisticSuffixes = map[string]bool{
	"median": true, "mean": true, "stdDev": true,
	"min": true, "max": true, "count": true, "sum": true,
}

// KnownStatistic reports whether a suffix names a statistic.
func KnownStatistic(s string) bool { return statisticSuffixes[s] }

// SplitVariable splits a provider variable name into its base variable and
// statistic. Names in derived (estimation outputs) and names without a
// recognized statistic suffix carry the statistic "none".
func SplitVariable(name string, derived map[string]bool) (variable, statistic string) {
	if derived[name] {
		return name, "none"
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '_' {
			if suffix := name[i+1:]; KnownStatistic(suffix) {
				return name[:i], suffix
			}
			break
		}
	}
	return name, "none"
}
