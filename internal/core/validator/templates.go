package validator

import "github.com/markdave123-py/lessontutor/internal/models"

type template map[models.Lang]string

func (t template) in(lang models.Lang) string {
	if s, ok := t[lang]; ok {
		return s
	}
	return t[models.LangEN]
}

var (
	notMentionedTemplate = template{
		models.LangEN: "The provided lesson excerpts do not mention this. Try rephrasing your question or ask about a topic covered in the lesson materials.",
		models.LangRU: "В предоставленных фрагментах урока об этом не говорится. Попробуйте переформулировать вопрос или спросите о теме из материалов урока.",
		models.LangKZ: "Берілген сабақ үзінділерінде бұл туралы айтылмаған. Сұрағыңызды басқаша қойып көріңіз немесе сабақ материалдарындағы тақырып туралы сұраңыз.",
	}
	hintOnlyTemplate = template{
		models.LangEN: "I can't give the final answer for this task, but I can help you get there. Re-read the cited excerpts, find the key concept they describe and try the first step yourself. Tell me where you get stuck and I'll give you a hint.",
		models.LangRU: "Я не могу дать готовый ответ на это задание, но помогу к нему прийти. Перечитайте указанные фрагменты, найдите ключевое понятие и попробуйте сделать первый шаг сами. Напишите, где возникли трудности, и я дам подсказку.",
		models.LangKZ: "Бұл тапсырманың дайын жауабын бере алмаймын, бірақ оған жетуге көмектесемін. Көрсетілген үзінділерді қайта оқып, негізгі ұғымды тауып, алғашқы қадамды өзіңіз жасап көріңіз. Қай жерде қиналғаныңызды жазыңыз, мен кеңес беремін.",
	}
	unsupportedTemplate = template{
		models.LangEN: "I couldn't find a reliable answer to this in the lesson materials. Please clarify your question or point me to the relevant part of the lesson.",
		models.LangRU: "Не удалось найти надёжный ответ в материалах урока. Уточните вопрос или укажите нужную часть урока.",
		models.LangKZ: "Сабақ материалдарынан бұл сұраққа сенімді жауап таба алмадым. Сұрағыңызды нақтылаңыз немесе сабақтың қай бөлімі екенін көрсетіңіз.",
	}
	noContextTemplate = template{
		models.LangEN: "The lesson context has not been added yet, so I can't answer questions about it. Please check back later or ask your instructor.",
		models.LangRU: "Контекст урока ещё не добавлен, поэтому я пока не могу отвечать на вопросы по нему. Загляните позже или обратитесь к преподавателю.",
		models.LangKZ: "Сабақ контексі әлі қосылмаған, сондықтан бұл сабақ бойынша сұрақтарға жауап бере алмаймын. Кейінірек қайталаңыз немесе оқытушыға хабарласыңыз.",
	}
)

func NotMentioned(lang models.Lang) string { return notMentionedTemplate.in(lang) }
func HintOnly(lang models.Lang) string { return hintOnlyTemplate.in(lang) }
func Unsupported(lang models.Lang) string { return unsupportedTemplate.in(lang) }
func NoContext(lang models.Lang) string { return noContextTemplate.in(lang) }
