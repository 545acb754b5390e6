package normalize

// Static reference tables. These mirror the curated vocabularies the data
// team maintains for Korean job boards; extend them in place.

// companyAliases maps a canonical company name to the spellings seen in
// the wild. Matching is exact and case-insensitive after suffix cleanup.
var companyAliases = map[string][]string{
	"삼성전자":  {"삼성전자주식회사", "Samsung Electronics", "SEC"},
	"네이버":   {"NAVER", "네이버주식회사", "NAVER Corp"},
	"카카오":   {"Kakao", "주식회사카카오", "Kakao Corp"},
	"LG전자":  {"LG Electronics", "LG전자주식회사"},
	"현대자동차": {"현대자동차주식회사", "Hyundai Motor"},
}

// locationMapping maps administrative-region strings to short canonical
// forms.
var locationMapping = map[string]string{
	"서울시":   "서울",
	"서울특별시": "서울",
	"경기도":   "경기",
	"부산시":   "부산",
	"부산광역시": "부산",
	"재택근무":  "재택",
	"원격근무":  "재택",
}

// skillMapping folds abbreviations and spelling variants onto one
// canonical skill name. Keys are lower-cased.
var skillMapping = map[string]string{
	"js":         "JavaScript",
	"ts":         "TypeScript",
	"python":     "Python",
	"python3":    "Python",
	"react.js":   "React",
	"reactjs":    "React",
	"vue.js":     "Vue.js",
	"vuejs":      "Vue.js",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"aws":        "AWS",
	"mysql":      "MySQL",
	"postgresql": "PostgreSQL",
	"postgres":   "PostgreSQL",
	"mongodb":    "MongoDB",
	"mongo":      "MongoDB",
}

// Category holds one taxonomy entry. Order matters: ties during
// re-classification keep the earliest-declared category.
type Category struct {
	Name     string
	Keywords []string
}

// CategoryOther is assigned when nothing in the taxonomy matches.
const CategoryOther = "기타"

// jobCategories is the fixed classification taxonomy.
var jobCategories = []Category{
	{Name: "IT/개발", Keywords: []string{
		"developer", "개발자", "programmer", "프로그래머",
		"frontend", "backend", "fullstack", "프론트엔드", "백엔드", "풀스택",
		"react", "vue", "angular", "node.js", "spring", "django", "python", "java",
	}},
	{Name: "보안", Keywords: []string{
		"보안", "security", "침해대응", "보안관제", "soc", "취약점",
		"포렌식", "정보보안", "네트워크보안", "인프라보안",
	}},
	{Name: "마케팅", Keywords: []string{
		"마케팅", "marketing", "광고", "브랜드", "퍼포먼스",
		"seo", "sem", "콘텐츠", "디지털마케팅", "온라인마케팅",
	}},
	{Name: "디자인", Keywords: []string{
		"디자인", "design", "ui", "ux", "그래픽",
		"figma", "adobe", "photoshop", "illustrator", "웹디자인",
	}},
	{Name: "기획", Keywords: []string{
		"기획", "pm", "product manager", "서비스기획",
		"전략기획", "사업기획", "planning", "프로덕트",
	}},
	{Name: "영업/세일즈", Keywords: []string{
		"영업", "세일즈", "sales", "기술영업",
		"b2b", "b2c", "해외영업", "국내영업",
	}},
	{Name: "금융", Keywords: []string{
		"금융", "finance", "투자", "리스크", "회계",
		"재무", "cpa", "frm", "은행", "증권",
	}},
}

// techKeywords is the vocabulary mined from titles and tags into the
// canonical keyword set at ingest time.
var techKeywords = []string{
	"JavaScript", "TypeScript", "Python", "Java", "C++", "C#", "Go", "Rust",
	"React", "Vue", "Angular", "Node.js", "Express", "Spring", "Django", "Flask",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins",
	"MongoDB", "MySQL", "PostgreSQL", "Redis", "Elasticsearch",
	"Git", "Jira", "Figma", "Adobe", "Photoshop", "Illustrator",
	"HTML", "CSS", "SQL", "NoSQL", "REST", "GraphQL",
}

// negotiableMarkers flag a compensation string as negotiable.
var negotiableMarkers = []string{"협의", "면접", "상담"}

// Experience tiers persisted downstream.
const (
	ExperienceEntry  = "신입"
	ExperienceJunior = "1-3년차"
	ExperienceAny    = "경력무관"
)
