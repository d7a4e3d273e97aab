package taxonomy

var countryRules = []Rule{
	{Canonical: "United States", Aliases: []string{"us", "usa", "u.s.", "u.s.a.", "united states of america", "america", "etats unis"}},
	{Canonical: "United Kingdom", Aliases: []string{"uk", "u.k.", "gb", "gbr", "great britain", "britain", "england", "scotland", "wales", "royaume uni"}},
	{Canonical: "France", Aliases: []string{"fr", "fra", "french republic", "republique francaise"}},
	{Canonical: "Germany", Aliases: []string{"de", "deu", "deutschland", "allemagne"}},
	{Canonical: "Spain", Aliases: []string{"es", "esp", "espana", "espagne"}},
	{Canonical: "Italy", Aliases: []string{"it", "ita", "italia", "italie"}},
	{Canonical: "Netherlands", Aliases: []string{"nl", "nld", "the netherlands", "holland", "pays bas"}},
	{Canonical: "Belgium", Aliases: []string{"be", "bel", "belgique", "belgie"}},
	{Canonical: "Switzerland", Aliases: []string{"ch", "che", "suisse", "schweiz"}},
	{Canonical: "Austria", Aliases: []string{"at", "aut", "osterreich", "autriche"}},
	{Canonical: "Ireland", Aliases: []string{"ie", "irl", "eire", "republic of ireland"}},
	{Canonical: "Portugal", Aliases: []string{"pt", "prt"}},
	{Canonical: "Luxembourg", Aliases: []string{"lu", "lux"}},
	{Canonical: "Sweden", Aliases: []string{"se", "swe", "sverige", "suede"}},
	{Canonical: "Norway", Aliases: []string{"no", "nor", "norge"}},
	{Canonical: "Denmark", Aliases: []string{"dk", "dnk", "danmark"}},
	{Canonical: "Finland", Aliases: []string{"fi", "fin", "suomi"}},
	{Canonical: "Estonia", Aliases: []string{"ee", "est"}},
	{Canonical: "Poland", Aliases: []string{"pl", "pol", "polska"}},
	{Canonical: "Czech Republic", Aliases: []string{"cz", "cze", "czechia"}},
	{Canonical: "Israel", Aliases: []string{"il", "isr"}},
	{Canonical: "Canada", Aliases: []string{"ca", "can"}},
	{Canonical: "Mexico", Aliases: []string{"mx", "mex"}},
	{Canonical: "Brazil", Aliases: []string{"br", "bra", "brasil"}},
	{Canonical: "Argentina", Aliases: []string{"ar", "arg"}},
	{Canonical: "India", Aliases: []string{"in", "ind", "bharat"}},
	{Canonical: "China", Aliases: []string{"cn", "chn", "prc", "people's republic of china"}},
	{Canonical: "Hong Kong", Aliases: []string{"hk", "hkg"}},
	{Canonical: "Japan", Aliases: []string{"jp", "jpn", "nippon"}},
	{Canonical: "South Korea", Aliases: []string{"kr", "kor", "korea", "republic of korea"}},
	{Canonical: "Singapore", Aliases: []string{"sg", "sgp"}},
	{Canonical: "Australia", Aliases: []string{"au", "aus"}},
	{Canonical: "New Zealand", Aliases: []string{"nz", "nzl"}},
	{Canonical: "United Arab Emirates", Aliases: []string{"ae", "are", "uae", "u.a.e.", "emirates", "dubai"}},
	{Canonical: "Saudi Arabia", Aliases: []string{"sa", "sau", "ksa"}},
	{Canonical: "Nigeria", Aliases: []string{"ng", "nga"}},
	{Canonical: "Kenya", Aliases: []string{"ke", "ken"}},
	{Canonical: "South Africa", Aliases: []string{"za", "zaf", "rsa"}},
	{Canonical: "Egypt", Aliases: []string{"eg", "egy"}},
	{Canonical: "Morocco", Aliases: []string{"ma", "mar", "maroc"}},
	{Canonical: "Turkey", Aliases: []string{"tr", "tur", "turkiye"}},
}

var stageRules = []Rule{
	{Canonical: "Pre-Seed", Aliases: []string{"preseed"}, Contains: []string{"pre seed"}},
	{Canonical: "Seed", Aliases: []string{"seed round", "seed funding"}, Contains: []string{"seed"}},
	{Canonical: "Angel", Aliases: []string{"angel round", "business angel"}, Contains: []string{"angel"}},
	{Canonical: "Series A", Aliases: []string{"a", "a round", "round a", "serie a"}, Contains: []string{"series a"}},
	{Canonical: "Series B", Aliases: []string{"b", "b round", "round b", "serie b"}, Contains: []string{"series b"}},
	{Canonical: "Series C", Aliases: []string{"c", "c round", "round c", "serie c"}, Contains: []string{"series c"}},
	{Canonical: "Series D", Aliases: []string{"d", "d round", "round d", "serie d"}, Contains: []string{"series d"}},
	{Canonical: "Series E+", Aliases: []string{"series e", "series f", "series g", "series h", "serie e"}, Contains: []string{"series e", "series f", "series g", "series h"}},
	{Canonical: "Bridge", Aliases: []string{"bridge round", "extension"}, Contains: []string{"bridge"}},
	{Canonical: "Growth", Aliases: []string{"growth equity", "late stage"}, Contains: []string{"growth"}},
	{Canonical: "Private Equity", Aliases: []string{"pe", "buyout", "lbo"}, Contains: []string{"private equity"}},
	{Canonical: "Debt", Aliases: []string{"debt financing", "venture debt", "loan", "credit facility"}, Contains: []string{"debt", "loan"}},
	{Canonical: "Convertible Note", Aliases: []string{"convertible", "safe", "bsa air"}, Contains: []string{"convertible"}},
	{Canonical: "Grant", Aliases: []string{"subsidy", "non dilutive"}, Contains: []string{"grant"}},
	{Canonical: "Crowdfunding", Aliases: []string{"equity crowdfunding", "crowd"}, Contains: []string{"crowdfunding"}},
	{Canonical: "Corporate Round", Aliases: []string{"strategic", "corporate"}, Contains: []string{"corporate", "strategic"}},
	{Canonical: "Secondary", Aliases: []string{"secondary market", "secondary sale"}, Contains: []string{"secondary"}},
	{Canonical: "IPO", Aliases: []string{"initial public offering", "listing"}, Contains: []string{"ipo"}},
}

var industryRules = []Rule{
	{Canonical: "Fintech", Aliases: []string{"financial technology", "finance", "financial services"}, Contains: []string{"fintech", "payments", "payment", "banking", "neobank", "lending", "wealth"}},
	{Canonical: "Insurtech", Aliases: []string{"insurance"}, Contains: []string{"insurtech", "insurance"}},
	{Canonical: "Healthtech", Aliases: []string{"health", "healthcare", "digital health", "medtech"}, Contains: []string{"health", "medical", "medtech", "healthcare"}},
	{Canonical: "Biotech", Aliases: []string{"biotechnology", "life sciences", "pharma"}, Contains: []string{"biotech", "pharma", "therapeutics", "genomics"}},
	{Canonical: "Artificial Intelligence", Aliases: []string{"ai", "a.i.", "machine learning", "ml", "genai", "generative ai"}, Contains: []string{"artificial intelligence", "machine learning", "ai", "llm"}},
	{Canonical: "SaaS", Aliases: []string{"software", "software as a service", "b2b software", "enterprise software"}, Contains: []string{"saas", "software"}},
	{Canonical: "Cybersecurity", Aliases: []string{"security", "infosec", "cyber security"}, Contains: []string{"cybersecurity", "security", "cyber"}},
	{Canonical: "Developer Tools", Aliases: []string{"devtools", "dev tools", "developer platform"}, Contains: []string{"developer", "devops"}},
	{Canonical: "E-commerce", Aliases: []string{"ecommerce", "online retail", "d2c", "dtc"}, Contains: []string{"ecommerce", "commerce"}},
	{Canonical: "Retail", Aliases: []string{"consumer goods", "cpg"}, Contains: []string{"retail"}},
	{Canonical: "Marketplace", Aliases: []string{"marketplaces"}, Contains: []string{"marketplace"}},
	{Canonical: "Edtech", Aliases: []string{"education", "e learning", "elearning"}, Contains: []string{"edtech", "education", "learning"}},
	{Canonical: "Climate Tech", Aliases: []string{"cleantech", "clean tech", "greentech", "sustainability"}, Contains: []string{"climate", "cleantech", "carbon"}},
	{Canonical: "Energy", Aliases: []string{"renewables", "renewable energy", "solar", "battery"}, Contains: []string{"energy", "solar", "battery"}},
	{Canonical: "Mobility", Aliases: []string{"transportation", "automotive", "ev"}, Contains: []string{"mobility", "automotive", "vehicle"}},
	{Canonical: "Logistics", Aliases: []string{"supply chain", "shipping", "delivery"}, Contains: []string{"logistics", "supply chain", "freight"}},
	{Canonical: "Proptech", Aliases: []string{"real estate", "construction tech"}, Contains: []string{"proptech", "real estate", "property"}},
	{Canonical: "Foodtech", Aliases: []string{"food", "food and beverage", "restaurant tech"}, Contains: []string{"food", "foodtech"}},
	{Canonical: "Agritech", Aliases: []string{"agriculture", "agtech", "farming"}, Contains: []string{"agri", "agritech", "agtech", "farming"}},
	{Canonical: "HR Tech", Aliases: []string{"hr", "human resources", "recruiting", "future of work"}, Contains: []string{"hr tech", "recruiting", "hiring", "payroll"}},
	{Canonical: "Legal Tech", Aliases: []string{"legal", "legaltech", "regtech"}, Contains: []string{"legal", "compliance"}},
	{Canonical: "Media", Aliases: []string{"entertainment", "content", "publishing"}, Contains: []string{"media", "streaming"}},
	{Canonical: "Gaming", Aliases: []string{"games", "video games", "esports"}, Contains: []string{"gaming", "game"}},
	{Canonical: "Travel", Aliases: []string{"hospitality", "traveltech", "tourism"}, Contains: []string{"travel", "hotel", "tourism"}},
	{Canonical: "Web3", Aliases: []string{"crypto", "blockchain", "defi", "nft", "cryptocurrency"}, Contains: []string{"crypto", "blockchain", "web3"}},
	{Canonical: "Deep Tech", Aliases: []string{"deeptech", "quantum", "robotics", "semiconductors", "space"}, Contains: []string{"quantum", "robotics", "semiconductor", "space"}},
	{Canonical: "Hardware", Aliases: []string{"iot", "internet of things", "consumer electronics"}, Contains: []string{"hardware", "iot", "devices"}},
	{Canonical: "Marketing Tech", Aliases: []string{"martech", "adtech", "advertising"}, Contains: []string{"marketing", "advertising", "adtech"}},
}
