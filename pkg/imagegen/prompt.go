// pkg/imagegen/prompt.go
package imagegen

import "strings"

// ImageType 图片用途
type ImageType string

const (
	ImageCover  ImageType = "cover"
	ImageDetail ImageType = "detail"
	ImageScene  ImageType = "scene"
)

const promptSuffix = ", high detail, 4K resolution, no text, no watermark, no logo, no human, no person, no face, no portrait"

type keyword struct {
	zh, en string
}

// titleKeywords 按分类的标题关键词，顺序即匹配优先级
var titleKeywords = map[string][]keyword{
	"beauty": {
		{"嘴唇", "lip balm and lip care products, rose petals, honey texture"},
		{"唇", "lip gloss tubes, glossy texture, pink aesthetic"},
		{"美白", "whitening serum bottles, vitamin C, bright clean background"},
		{"保湿", "moisturizer jars, water droplets, hydrating texture"},
		{"干皮", "rich cream texture, nourishing oils, winter skincare"},
		{"油皮", "mattifying products, oil control, fresh green tea leaves"},
		{"毛孔", "pore care products, clean skin texture, minimalist"},
		{"敏感", "gentle skincare, calming ingredients, soft pink tones"},
		{"抗老", "anti-aging serum, retinol bottles, luxury gold accents"},
		{"眼霜", "eye cream jar, delicate texture, pearl elements"},
		{"精华", "serum droppers, glass bottles, golden liquid"},
		{"面膜", "sheet masks, spa setting, cucumber slices"},
		{"防晒", "sunscreen bottles, beach elements, summer vibes"},
		{"底妆", "foundation bottles, makeup sponges, flawless texture"},
		{"痘", "acne treatment, tea tree, clean clinical aesthetic"},
		{"水乳", "toner and lotion set, matching bottles, minimalist"},
		{"早C晚A", "vitamin C and retinol serums, day and night concept"},
	},
	"fashion": {
		{"羽绒服", "puffer jacket flat lay, winter accessories, cozy wool scarf"},
		{"大衣", "wool coat draped elegantly, leather bag, autumn leaves"},
		{"针织", "knitwear stack, cable knit texture, warm tones"},
		{"小个子", "petite outfit flat lay, high waist pants, platform shoes"},
		{"显瘦", "slimming black outfit, vertical lines, elegant silhouette"},
		{"通勤", "office outfit flat lay, laptop bag, coffee cup"},
		{"约会", "romantic dress, flowers, soft pink accessories"},
		{"配饰", "accessories arrangement, jewelry, scarves, hats"},
		{"围巾", "cashmere scarves folded, winter accessories, warm colors"},
		{"帽子", "hat collection, berets and beanies, stylish arrangement"},
		{"叠穿", "layered outfit flat lay, multiple textures, autumn style"},
		{"老钱风", "quiet luxury items, cashmere, pearls, neutral tones"},
		{"美拉德", "brown tones outfit, caramel colors, autumn aesthetic"},
	},
	"food": {
		{"火锅", "hot pot with fresh ingredients, steam rising, red soup base"},
		{"奶茶", "bubble tea cups, tapioca pearls, aesthetic cafe setting"},
		{"早餐", "breakfast spread, eggs and toast, morning sunlight"},
		{"减脂", "healthy salad bowl, colorful vegetables, fitness aesthetic"},
		{"空气炸锅", "crispy air fried food, golden texture, kitchen setting"},
		{"甜品", "dessert arrangement, macarons and cakes, pastel colors"},
		{"宵夜", "late night snacks, neon lights, street food aesthetic"},
		{"年夜饭", "Chinese New Year feast, red decorations, family dishes"},
		{"蘸料", "dipping sauces in small bowls, spices, ingredients"},
		{"红薯", "roasted sweet potatoes, autumn harvest, warm colors"},
	},
	"travel": {
		{"哈尔滨", "Harbin ice sculptures, colorful lights, snow scenery"},
		{"云南", "Yunnan terraced rice fields, misty mountains, ethnic culture"},
		{"新疆", "Xinjiang desert landscape, snow mountains, silk road"},
		{"西双版纳", "tropical rainforest, palm trees, Buddhist temple"},
		{"厦门", "Xiamen coastal scenery, Gulangyu island, colonial architecture"},
		{"成都", "Chengdu teahouse, bamboo forest, panda elements"},
		{"日本", "Japanese temple, cherry blossoms, traditional garden"},
		{"泰国", "Thai beach sunset, tropical paradise, golden temple"},
		{"滑雪", "ski resort, snow mountains, winter sports equipment"},
		{"温泉", "hot spring steam, Japanese onsen, relaxing atmosphere"},
	},
	"home": {
		{"出租屋", "small apartment makeover, cozy corner, fairy lights"},
		{"收纳", "organized storage boxes, tidy shelves, minimalist"},
		{"厨房", "kitchen organization, spice jars, clean countertop"},
		{"卧室", "cozy bedroom, soft bedding, warm lamp light"},
		{"浴室", "bathroom organization, toiletries arranged, spa vibes"},
		{"绿植", "indoor plants arrangement, monstera, succulent garden"},
		{"香薰", "scented candles, diffuser, relaxing atmosphere"},
		{"床品", "luxurious bedding set, soft textures, hotel style"},
		{"取暖", "cozy heater, warm blanket, winter comfort"},
		{"衣柜", "organized closet, color coordinated clothes, neat hangers"},
	},
	"fitness": {
		{"帕梅拉", "home workout setup, yoga mat, resistance bands"},
		{"腹肌", "ab roller and mat, core workout equipment, energetic"},
		{"臀腿", "resistance bands, booty workout, gym aesthetic"},
		{"跑步", "running shoes, fitness tracker, outdoor trail"},
		{"瑜伽", "yoga mat and blocks, peaceful setting, plants"},
		{"拉伸", "stretching equipment, foam roller, recovery tools"},
		{"减脂", "cardio equipment, jump rope, sweat towel"},
		{"增肌", "dumbbells and protein shake, gym setting, powerful"},
		{"体态", "posture corrector, alignment tools, wellness"},
	},
	"tech": {
		{"iPhone", "iPhone on marble surface, minimalist, Apple aesthetic"},
		{"华为", "Huawei smartphone, modern tech, sleek design"},
		{"小米", "Xiaomi devices ecosystem, smart home, modern"},
		{"手机", "smartphone flat lay, accessories, tech lifestyle"},
		{"MacBook", "MacBook on wooden desk, coffee, creative workspace"},
		{"笔记本", "laptop workspace, productivity setup, clean desk"},
		{"iPad", "iPad with Apple Pencil, creative tools, digital art"},
		{"耳机", "wireless earbuds, premium headphones, audio gear"},
		{"充电", "power bank and cables, charging station, organized"},
		{"游戏本", "gaming laptop, RGB lighting, gaming peripherals"},
	},
	"study": {
		{"考研", "study books stacked, highlighters, exam preparation"},
		{"考公", "civil service exam materials, organized notes, desk lamp"},
		{"英语", "English textbooks, vocabulary cards, language learning"},
		{"时间管理", "planner and calendar, productivity tools, organized"},
		{"自律", "habit tracker, morning routine items, motivational"},
		{"读书", "book stack, reading glasses, cozy reading nook"},
		{"副业", "laptop and notebook, side hustle setup, entrepreneurial"},
		{"Excel", "spreadsheet on screen, data analysis, professional"},
		{"PPT", "presentation materials, business meeting setup"},
		{"面试", "professional portfolio, resume, interview preparation"},
		{"简历", "resume document, career planning, professional items"},
		{"新年计划", "goal setting journal, new year planner, fresh start"},
	},
}

// styleTemplate 主体描述用 %s 占位，没有命中关键词时用 fallback
type styleTemplate struct {
	prefix, fallback, suffix string
}

var categoryStyles = map[string]map[ImageType]styleTemplate{
	"beauty": {
		ImageCover:  {"skincare product photography", "elegant cosmetic bottles and jars on marble", "soft natural lighting, luxury aesthetic, professional commercial photography"},
		ImageDetail: {"cosmetic texture close-up", "cream swirl on glass surface", "macro photography, soft focus background"},
		ImageScene:  {"bathroom vanity scene", "skincare products arranged", "morning routine, soft window light"},
	},
	"fashion": {
		ImageCover:  {"fashion flat lay photography", "complete outfit arrangement", "minimalist white background, magazine style"},
		ImageDetail: {"clothing fabric texture", "stitching details", "macro fashion photography"},
		ImageScene:  {"wardrobe interior", "clothes hanging neatly", "organized closet, soft natural light"},
	},
	"food": {
		ImageCover:  {"food photography", "delicious dish with beautiful plating", "appetizing colors, warm lighting, 45 degree angle"},
		ImageDetail: {"food ingredient close-up", "fresh ingredients", "macro food photography, vibrant colors"},
		ImageScene:  {"dining table setting", "meal ready to serve", "cozy restaurant atmosphere"},
	},
	"travel": {
		ImageCover:  {"travel landscape photography", "magnificent natural scenery", "golden hour lighting, wide angle, vibrant colors"},
		ImageDetail: {"travel details", "local architecture", "cultural elements, documentary style"},
		ImageScene:  {"travel lifestyle scene", "scenic viewpoint", "wanderlust atmosphere"},
	},
	"home": {
		ImageCover:  {"interior design photography", "cozy living space", "minimalist Nordic style, soft natural light"},
		ImageDetail: {"home decor close-up", "decorative objects", "texture details, warm tones"},
		ImageScene:  {"cozy corner scene", "reading nook", "warm lamp light, hygge atmosphere"},
	},
	"fitness": {
		ImageCover:  {"fitness equipment photography", "professional gym equipment", "bright environment, energetic atmosphere"},
		ImageDetail: {"fitness gear close-up", "workout accessories", "product photography"},
		ImageScene:  {"home gym setup", "workout space", "morning exercise atmosphere"},
	},
	"tech": {
		ImageCover:  {"digital product photography", "elegant electronic device", "minimalist background, professional lighting"},
		ImageDetail: {"tech product close-up", "device details", "macro product photography"},
		ImageScene:  {"desk setup scene", "workspace with devices", "productive atmosphere"},
	},
	"study": {
		ImageCover:  {"study desk photography", "books and stationery", "warm desk lamp lighting, comfortable atmosphere"},
		ImageDetail: {"stationery close-up", "notebook pages", "macro photography, soft lighting"},
		ImageScene:  {"cozy study corner", "bookshelf background", "warm ambient light"},
	},
}

var defaultStyles = map[ImageType]styleTemplate{
	ImageCover:  {"product photography", "clean arrangement", "soft lighting, professional photography"},
	ImageDetail: {"close-up detail shot", "texture and material", "macro photography"},
	ImageScene:  {"lifestyle scene", "cozy atmosphere", "natural lighting"},
}

// KeywordsFromTitle 标题命中的第一个关键词对应的英文描述
func KeywordsFromTitle(title, category string) string {
	for _, kw := range titleKeywords[category] {
		if strings.Contains(title, kw.zh) {
			return kw.en
		}
	}
	return ""
}

// BuildPrompt 根据分类和图片用途拼出英文提示词
func BuildPrompt(title, category string, kind ImageType) string {
	styles, ok := categoryStyles[category]
	if !ok {
		styles = defaultStyles
	}
	tpl, ok := styles[kind]
	if !ok {
		tpl = styles[ImageCover]
	}

	subject := KeywordsFromTitle(title, category)
	if subject == "" {
		subject = tpl.fallback
	}
	return tpl.prefix + ", " + subject + ", " + tpl.suffix + promptSuffix
}
