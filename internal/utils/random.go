package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"

	"github.com/genba-dispatch/dispatch/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomEmployee(role domain.Role, emailDomainName string) *domain.Employee {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)

	return &domain.Employee{
		Username: username,
		FullName: fullName,
		Email:    username + "@" + emailDomainName,
		Role:     role,
		IsActive: true,
	}
}

var letters = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ")

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rand.Intn(len(letters))]
		} else {
			random_id[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(random_id)
}

var (
	sitePlaces        = []string{"本町", "梅田", "難波", "天王寺", "京橋", "心斎橋", "淀屋橋", "堺", "江坂", "住之江"}
	siteKinds         = []string{"ビル", "マンション", "倉庫", "工場", "邸", "病院", "学校"}
	customers         = []string{"大成建設", "梅田工務店", "関西ハウス", "難波建設", "堺開発"}
	constructionTypes = []string{"assembly", "demolition", "renovation", "other"}
	contentTypes      = []string{"新築", "改修", "修繕", "解体"}
	meetingTimes      = []string{"07:00", "07:30", "08:00", "08:30"}
)

func GenerateRandomProjectMaster() domain.ProjectMasterInput {
	return domain.ProjectMasterInput{
		Title:            sitePlaces[rand.Intn(len(sitePlaces))] + siteKinds[rand.Intn(len(siteKinds))] + GenerateRandomID(0, 3),
		Customer:         customers[rand.Intn(len(customers))],
		ConstructionType: constructionTypes[rand.Intn(len(constructionTypes))],
		ContentType:      contentTypes[rand.Intn(len(contentTypes))],
		Managers:         []string{GenerateRandomChineseName()},
	}
}

// GenerateRandomVehicles 生成形如 "2t-AB12" 的车辆编号
func GenerateRandomVehicles(n int) []string {
	sizes := []string{"2t", "4t", "ユニック"}
	vehicles := make([]string, n)
	for i := range vehicles {
		vehicles[i] = fmt.Sprintf("%s-%s", sizes[rand.Intn(len(sizes))], GenerateRandomID(2, 2))
	}
	return vehicles
}

// 使用 Fisher-Yates 洗牌算法来生成一个随机子集，至少包含一个元素
func GenerateRandomSubset[T any](arr []T) []T {
	if len(arr) == 0 {
		return []T{}
	}
	arrCopy := append([]T{}, arr...) // 复制数组，避免修改原数组

	for i := 0; i < len(arrCopy)-1; i++ {
		j := rand.Intn(len(arrCopy)-i) + i
		arrCopy[i], arrCopy[j] = arrCopy[j], arrCopy[i]
	}

	l := rand.Intn(len(arrCopy)) + 1
	return arrCopy[:l]
}

func GenerateRandomAssignment(projectMasterID string, foreman *domain.Employee, workers []string, date domain.Date, sortOrder int) domain.AssignmentInput {
	crew := GenerateRandomSubset(workers)
	meetingTime := meetingTimes[rand.Intn(len(meetingTimes))]
	hours := float64(rand.Intn(5) + 4)

	return domain.AssignmentInput{
		ProjectMasterID:    projectMasterID,
		AssignedEmployeeID: foreman.ID,
		Date:               date,
		MemberCount:        len(crew) + 1, // 职长本人也算一人
		Workers:            crew,
		Vehicles:           GenerateRandomVehicles(rand.Intn(2) + 1),
		MeetingTime:        &meetingTime,
		SortOrder:          &sortOrder,
		EstimatedHours:     &hours,
	}
}
