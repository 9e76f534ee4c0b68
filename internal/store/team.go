package store

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"astro/internal/models"
)

// 随机人名池，用于生成虚拟团队成员。
var (
	maleFirstNames = []string{
		"James", "Robert", "Michael", "William", "David", "Richard", "Joseph",
		"Thomas", "Charles", "Daniel", "Matthew", "Anthony", "Mark", "Steven",
		"Andrew", "Paul", "Joshua", "Kevin", "Brian", "George", "Edward",
		"Jason", "Ryan", "Jacob", "Nicholas", "Eric", "Jonathan", "Stephen",
		"Justin", "Scott", "Brandon", "Benjamin", "Samuel", "Gregory", "Frank",
		"Patrick", "Alexander", "Jack", "Dennis", "Ethan", "Nathan", "Peter",
		"Zachary", "Kyle", "Noah", "Aaron", "Henry", "Adam", "Dylan", "Ian",
		"Owen", "Luke", "Caleb", "Marcus", "Leo", "Hugo", "Felix", "Oscar",
	}
	femaleFirstNames = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth",
		"Susan", "Jessica", "Sarah", "Karen", "Lisa", "Nancy", "Margaret",
		"Sandra", "Ashley", "Kimberly", "Emily", "Donna", "Michelle", "Carol",
		"Amanda", "Melissa", "Stephanie", "Rebecca", "Sharon", "Laura",
		"Cynthia", "Amy", "Angela", "Anna", "Pamela", "Emma", "Nicole",
		"Helen", "Samantha", "Katherine", "Christine", "Rachel", "Janet",
		"Catherine", "Maria", "Heather", "Diane", "Ruth", "Julie", "Olivia",
		"Victoria", "Kelly", "Lauren", "Christina", "Hannah", "Megan",
		"Sophia", "Abigail", "Alice", "Grace", "Amber", "Natalie", "Charlotte",
		"Zoe", "Claire", "Isla", "Luna", "Aria", "Hazel", "Violet",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
		"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
		"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores", "Green",
		"Adams", "Nelson", "Baker", "Hall", "Rivera", "Campbell", "Mitchell",
		"Carter", "Roberts", "Chen", "Kim", "Patel", "Singh", "Kumar",
		"Nakamura", "Tanaka", "Sato", "Watanabe", "Yamamoto", "Muller",
		"Weber", "Fischer", "Becker", "Rossi", "Russo", "Colombo", "Ferrari",
	}
)

// RandomPersona 生成一个随机姓名和性别。gender 为空时随机选择。
func RandomPersona(gender string) (string, string) {
	if gender == "" {
		if rand.Intn(2) == 0 {
			gender = "male"
		} else {
			gender = "female"
		}
	}
	firsts := maleFirstNames
	if gender == "female" {
		firsts = femaleFirstNames
	}
	return firsts[rand.Intn(len(firsts))] + " " + lastNames[rand.Intn(len(lastNames))], gender
}

// ListTeamMembers 返回所有虚拟团队成员，按名称升序。
func (s *Store) ListTeamMembers() ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := s.DB.Order("name ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// GetTeamMember 通过 ID 查找成员，不存在时返回 nil。
func (s *Store) GetTeamMember(id uint) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := s.DB.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// CreateTeamMember 创建一个成员。名称为空时随机生成人设，
// 头像种子缺失时用 UUID 补齐。
func (s *Store) CreateTeamMember(member *models.TeamMember) error {
	if member.Name == "" {
		member.Name, member.Gender = RandomPersona(member.Gender)
	}
	if member.AvatarSeed == "" {
		member.AvatarSeed = uuid.New().String()
	}
	return s.DB.Create(member).Error
}

// UpdateTeamMember 更新一个成员。
func (s *Store) UpdateTeamMember(member *models.TeamMember) error {
	return s.DB.Save(member).Error
}

// DeleteTeamMember 删除成员及引用它的活动任务。
func (s *Store) DeleteTeamMember(id uint) error {
	if err := s.DB.Where("member_id = ?", id).Delete(&models.ActivityTask{}).Error; err != nil {
		return err
	}
	return s.DB.Delete(&models.TeamMember{}, id).Error
}
